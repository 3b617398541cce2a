package transfer

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

const (
	minBurst = 1 << 10
	maxBurst = 256 << 10
)

// newLimiter returns nil when bytesPerSecond is not positive.
func newLimiter(bytesPerSecond int64) *rate.Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	burst := int(min(max(bytesPerSecond, minBurst), maxBurst))
	return rate.NewLimiter(rate.Limit(bytesPerSecond), burst)
}

// limitedReader throttles reads through a limiter shared by every segment of
// a job.
type limitedReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func newLimitedReader(ctx context.Context, r io.Reader, limiter *rate.Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &limitedReader{ctx: ctx, r: r, limiter: limiter}
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if burst := l.limiter.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := l.r.Read(p)
	if n > 0 {
		if waitErr := l.limiter.WaitN(l.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}
