package processor

import (
	"fmt"
	"strconv"
	"strings"

	"downie/internal/model"
)

// StepKind names one stage of a processing plan.
type StepKind string

const (
	StepCrop   StepKind = "crop"
	StepScale  StepKind = "scale"
	StepRotate StepKind = "rotate"
	StepFPS    StepKind = "fps"
	StepAudio  StepKind = "audio"
	StepEncode StepKind = "encode"
)

// Step is one transformation. Filter holds a video filter expression for the
// geometric and rate steps; Args holds output options for the others.
type Step struct {
	Kind   StepKind
	Filter string
	Args   []string
}

// Plan is an ordered set of steps for one input/output pair.
type Plan struct {
	Input     string
	Output    string
	Steps     []Step
	AudioOnly bool
	NoAudio   bool
	// Duration of the input in seconds when known, for progress reporting.
	Duration float64
}

// audioEncoders maps an extraction format to the encoder that produces it.
var audioEncoders = map[string]string{
	"mp3":  "libmp3lame",
	"aac":  "aac",
	"m4a":  "aac",
	"opus": "libopus",
	"ogg":  "libvorbis",
	"flac": "flac",
	"wav":  "pcm_s16le",
}

// BuildPlan translates a validated config into ordered steps.
func BuildPlan(input, output string, cfg model.ProcessingConfig) (Plan, error) {
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return Plan{}, err
	}

	plan := Plan{Input: input, Output: output}
	if cfg.Crop != "" {
		plan.Steps = append(plan.Steps, Step{Kind: StepCrop, Filter: "crop=" + cfg.Crop})
	}
	if cfg.Resize != "" {
		w, h, err := model.ParseResize(cfg.Resize)
		if err != nil {
			return Plan{}, err
		}
		plan.Steps = append(plan.Steps, Step{Kind: StepScale, Filter: fmt.Sprintf("scale=%d:%d", w, h)})
	}
	if cfg.Rotate != nil {
		if filter := rotateFilter(*cfg.Rotate); filter != "" {
			plan.Steps = append(plan.Steps, Step{Kind: StepRotate, Filter: filter})
		}
	}
	if cfg.FPS > 0 {
		plan.Steps = append(plan.Steps, Step{Kind: StepFPS, Filter: "fps=" + strconv.Itoa(cfg.FPS)})
	}

	switch {
	case cfg.ExtractAudio:
		plan.AudioOnly = true
		args := []string{"-vn", "-c:a", audioEncoders[cfg.AudioFormat]}
		if cfg.AudioBitrate != "" && !lossless(cfg.AudioFormat) {
			args = append(args, "-b:a", cfg.AudioBitrate)
		}
		plan.Steps = append(plan.Steps, Step{Kind: StepAudio, Args: args})
		return plan, nil
	case cfg.RemoveAudio:
		plan.NoAudio = true
		plan.Steps = append(plan.Steps, Step{Kind: StepAudio, Args: []string{"-an"}})
	}

	plan.Steps = append(plan.Steps, Step{Kind: StepEncode, Args: encodeArgs(cfg, len(plan.VideoFilters()) > 0)})
	return plan, nil
}

// VideoFilters returns the filter expressions in plan order.
func (p Plan) VideoFilters() []string {
	var filters []string
	for _, step := range p.Steps {
		if step.Filter != "" {
			filters = append(filters, step.Filter)
		}
	}
	return filters
}

// Kinds lists the step kinds in order.
func (p Plan) Kinds() []StepKind {
	kinds := make([]StepKind, 0, len(p.Steps))
	for _, step := range p.Steps {
		kinds = append(kinds, step.Kind)
	}
	return kinds
}

// Args renders the ffmpeg command line, excluding the binary.
func (p Plan) Args() []string {
	args := []string{"-nostdin", "-hide_banner", "-loglevel", "error", "-nostats", "-progress", "pipe:1", "-y", "-i", p.Input}
	if filters := p.VideoFilters(); len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}
	for _, step := range p.Steps {
		args = append(args, step.Args...)
	}
	return append(args, p.Output)
}

// encodeArgs re-encodes video only when filters or a bitrate demand it, or a
// non-default codec was requested; otherwise streams are copied.
func encodeArgs(cfg model.ProcessingConfig, filtered bool) []string {
	video, audio := encoders(cfg, filtered)
	args := []string{"-c:v", video}
	if video != "copy" && cfg.VideoBitrate != "" {
		args = append(args, "-b:v", cfg.VideoBitrate)
	}
	if audio == "" {
		return args
	}
	args = append(args, "-c:a", audio)
	if audio != "copy" && cfg.AudioBitrate != "" {
		args = append(args, "-b:a", cfg.AudioBitrate)
	}
	return args
}

// encoders returns the video and audio encoder names, "copy" for passthrough.
// audio is empty when audio is dropped.
func encoders(cfg model.ProcessingConfig, filtered bool) (video, audio string) {
	video = "copy"
	if filtered || cfg.VideoBitrate != "" || cfg.VideoCodec != model.DefaultVideoCodec {
		video = cfg.VideoCodec
	}
	if cfg.RemoveAudio {
		return video, ""
	}
	audio = "copy"
	if cfg.AudioBitrate != "" || cfg.AudioCodec != model.DefaultAudioCodec {
		audio = cfg.AudioCodec
	}
	return video, audio
}

// hasFilters reports whether cfg produces any video filter step.
func hasFilters(cfg model.ProcessingConfig) bool {
	if cfg.Crop != "" || cfg.Resize != "" || cfg.FPS > 0 {
		return true
	}
	return cfg.Rotate != nil && model.NormalizeDegrees(*cfg.Rotate) != 0
}

var (
	webmVideoEncoders = map[string]bool{"copy": true, "libvpx": true, "libvpx-vp9": true, "libaom-av1": true, "libsvtav1": true, "librav1e": true}
	webmAudioEncoders = map[string]bool{"": true, "copy": true, "libopus": true, "opus": true, "libvorbis": true, "vorbis": true}
)

// containerExt keeps the input container unless it is WebM and the encoders
// fall outside what the WebM muxer accepts, in which case Matroska is used.
func containerExt(ext string, cfg model.ProcessingConfig) string {
	if !strings.EqualFold(ext, ".webm") {
		return ext
	}
	video, audio := encoders(cfg, hasFilters(cfg))
	if webmVideoEncoders[video] && webmAudioEncoders[audio] {
		return ext
	}
	return ".mkv"
}

// rotateFilter rotates clockwise. Right angles use lossless transposes.
func rotateFilter(degrees int) string {
	switch d := model.NormalizeDegrees(degrees); d {
	case 0:
		return ""
	case 90:
		return "transpose=1"
	case 180:
		return "transpose=1,transpose=1"
	case 270:
		return "transpose=2"
	default:
		return fmt.Sprintf("rotate=%d*PI/180", d)
	}
}

func lossless(format string) bool {
	return format == "flac" || format == "wav"
}
