package logging

import "testing"

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 10},
		{"default bucket size for negative", -1, 10},
		{"custom bucket size", 25, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSampler_NilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "transfer") {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSampler_Buckets(t *testing.T) {
	s := NewProgressSampler(10)

	if !s.ShouldLog(0, "transfer") {
		t.Error("first event should log")
	}
	if s.ShouldLog(4, "transfer") {
		t.Error("same bucket should not log")
	}
	if !s.ShouldLog(12, "transfer") {
		t.Error("new bucket should log")
	}
	if s.ShouldLog(5, "transfer") {
		t.Error("going backwards should not log")
	}
	if !s.ShouldLog(100, "transfer") {
		t.Error("completion should log")
	}
	if s.ShouldLog(100, "transfer") {
		t.Error("repeated completion should not log")
	}
	if !s.ShouldLog(0, "transcode") {
		t.Error("stage change should log")
	}
}

func TestProgressSampler_UnknownPercent(t *testing.T) {
	s := NewProgressSampler(10)
	if !s.ShouldLog(-1, "extract") {
		t.Error("first stage should log")
	}
	if s.ShouldLog(-1, "extract") {
		t.Error("unknown percent on same stage should not log")
	}
	s.Reset()
	if !s.ShouldLog(-1, "extract") {
		t.Error("reset should allow the stage to log again")
	}
}
