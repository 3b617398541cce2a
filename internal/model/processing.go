package model

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"downie/internal/services"
)

const (
	DefaultAudioFormat = "mp3"
	DefaultVideoCodec  = "libx264"
	DefaultAudioCodec  = "aac"
)

var (
	cropPattern    = regexp.MustCompile(`^(\d+):(\d+):(\d+):(\d+)$`)
	resizePattern  = regexp.MustCompile(`^(-1|-2|\d+)[xX](-1|-2|\d+)$`)
	bitratePattern = regexp.MustCompile(`^\d+(\.\d+)?[kKmM]?$`)
)

// AudioFormats lists the containers supported for audio extraction.
var AudioFormats = []string{"mp3", "aac", "m4a", "opus", "ogg", "flac", "wav"}

// ProcessingConfig describes the transformations applied after a download.
// Zero values mean "leave unchanged".
type ProcessingConfig struct {
	Crop         string
	Resize       string
	Rotate       *int
	FPS          int
	RemoveAudio  bool
	ExtractAudio bool
	AudioFormat  string
	VideoCodec   string
	AudioCodec   string
	VideoBitrate string
	AudioBitrate string
}

// ProcessingOption customizes a ProcessingConfig during construction.
type ProcessingOption func(*ProcessingConfig)

// WithCrop crops to "w:h:x:y".
func WithCrop(crop string) ProcessingOption {
	return func(p *ProcessingConfig) { p.Crop = strings.TrimSpace(crop) }
}

// WithResize scales to "WxH"; either side may be -1 to keep aspect ratio.
func WithResize(size string) ProcessingOption {
	return func(p *ProcessingConfig) { p.Resize = strings.TrimSpace(size) }
}

// WithRotate rotates clockwise by the given degrees.
func WithRotate(degrees int) ProcessingOption {
	return func(p *ProcessingConfig) {
		d := degrees
		p.Rotate = &d
	}
}

// WithFPS retargets the frame rate.
func WithFPS(fps int) ProcessingOption {
	return func(p *ProcessingConfig) { p.FPS = fps }
}

// WithRemoveAudio drops every audio stream.
func WithRemoveAudio() ProcessingOption {
	return func(p *ProcessingConfig) { p.RemoveAudio = true }
}

// WithExtractAudio produces an audio-only artifact in the given format.
// An empty format keeps the default.
func WithExtractAudio(format string) ProcessingOption {
	return func(p *ProcessingConfig) {
		p.ExtractAudio = true
		if f := strings.TrimSpace(format); f != "" {
			p.AudioFormat = strings.ToLower(f)
		}
	}
}

// WithCodecs overrides the video and audio encoders. Empty values keep defaults.
func WithCodecs(video, audio string) ProcessingOption {
	return func(p *ProcessingConfig) {
		if v := strings.TrimSpace(video); v != "" {
			p.VideoCodec = v
		}
		if a := strings.TrimSpace(audio); a != "" {
			p.AudioCodec = a
		}
	}
}

// WithBitrates sets target bitrates such as "2M" or "192k".
func WithBitrates(video, audio string) ProcessingOption {
	return func(p *ProcessingConfig) {
		p.VideoBitrate = strings.TrimSpace(video)
		p.AudioBitrate = strings.TrimSpace(audio)
	}
}

// NewProcessingConfig builds and validates a processing request with the
// default audio format and codecs filled in.
func NewProcessingConfig(opts ...ProcessingOption) (ProcessingConfig, error) {
	var cfg ProcessingConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return ProcessingConfig{}, err
	}
	return cfg, nil
}

// Normalized returns a copy with defaults applied to empty fields.
func (p ProcessingConfig) Normalized() ProcessingConfig {
	p.AudioFormat = strings.ToLower(strings.TrimSpace(p.AudioFormat))
	if p.AudioFormat == "" {
		p.AudioFormat = DefaultAudioFormat
	}
	if strings.TrimSpace(p.VideoCodec) == "" {
		p.VideoCodec = DefaultVideoCodec
	}
	if strings.TrimSpace(p.AudioCodec) == "" {
		p.AudioCodec = DefaultAudioCodec
	}
	if p.Rotate != nil {
		d := *p.Rotate
		p.Rotate = &d
	}
	return p
}

// Validate checks syntax and coherence. Removing audio while extracting it is
// contradictory and is rejected rather than resolved silently; so are video
// geometry or rate changes on an audio-only extraction.
func (p ProcessingConfig) Validate() error {
	if p.RemoveAudio && p.ExtractAudio {
		return services.Wrap(services.ErrConflictingOptions, "config", "processing",
			"remove_audio and extract_audio cannot both be set", nil)
	}
	if p.ExtractAudio {
		var videoOps []string
		if p.Crop != "" {
			videoOps = append(videoOps, "crop")
		}
		if p.Resize != "" {
			videoOps = append(videoOps, "resize")
		}
		if p.Rotate != nil && NormalizeDegrees(*p.Rotate) != 0 {
			videoOps = append(videoOps, "rotate")
		}
		if p.FPS != 0 {
			videoOps = append(videoOps, "fps")
		}
		if p.VideoBitrate != "" {
			videoOps = append(videoOps, "video_bitrate")
		}
		if len(videoOps) > 0 {
			return services.Wrap(services.ErrConflictingOptions, "config", "processing",
				fmt.Sprintf("extract_audio produces no video stream; drop %s", strings.Join(videoOps, ", ")), nil)
		}
	}
	if p.Crop != "" {
		m := cropPattern.FindStringSubmatch(p.Crop)
		if m == nil || m[1] == "0" || m[2] == "0" {
			return invalid("crop", fmt.Sprintf("%q must look like w:h:x:y with positive width and height", p.Crop))
		}
	}
	if p.Resize != "" {
		if _, _, err := ParseResize(p.Resize); err != nil {
			return err
		}
	}
	if p.FPS < 0 {
		return invalid("fps", "must be a positive integer")
	}
	if p.ExtractAudio && !slices.Contains(AudioFormats, p.AudioFormat) {
		return invalid("audio_format", fmt.Sprintf("%q is not one of %s", p.AudioFormat, strings.Join(AudioFormats, ", ")))
	}
	if p.VideoBitrate != "" && !bitratePattern.MatchString(p.VideoBitrate) {
		return invalid("video_bitrate", fmt.Sprintf("%q is not a bitrate", p.VideoBitrate))
	}
	if p.AudioBitrate != "" && !bitratePattern.MatchString(p.AudioBitrate) {
		return invalid("audio_bitrate", fmt.Sprintf("%q is not a bitrate", p.AudioBitrate))
	}
	return nil
}

// IsNoop reports whether the config requests no transformation at all.
func (p ProcessingConfig) IsNoop() bool {
	return p.Crop == "" && p.Resize == "" && (p.Rotate == nil || NormalizeDegrees(*p.Rotate) == 0) &&
		p.FPS == 0 && !p.RemoveAudio && !p.ExtractAudio && p.VideoBitrate == "" && p.AudioBitrate == ""
}

// ParseResize splits "WxH" into dimensions. A side of -1 or -2 keeps aspect ratio.
func ParseResize(value string) (int, int, error) {
	m := resizePattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return 0, 0, invalid("resize", fmt.Sprintf("%q must look like WxH", value))
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	if w == 0 || h == 0 || (w < 0 && h < 0) {
		return 0, 0, invalid("resize", fmt.Sprintf("%q needs at least one positive side and no zero side", value))
	}
	return w, h, nil
}

// NormalizeDegrees folds an angle into [0, 360).
func NormalizeDegrees(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}
