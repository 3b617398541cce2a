package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"downie/internal/config"
	"downie/internal/downloader"
	"downie/internal/extract"
	"downie/internal/model"
	"downie/internal/workflow"
)

type transferFlags struct {
	proxy       string
	limitSpeed  string
	username    string
	password    string
	cookiesFile string
}

func (f *transferFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.proxy, "proxy", "", "Proxy URL (defaults to network.proxy)")
	cmd.Flags().StringVarP(&f.username, "username", "u", "", "Account username")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "Account password")
	cmd.Flags().StringVar(&f.cookiesFile, "cookies", "", "Netscape cookies file")
}

func (f *transferFlags) options(cfg *config.Config) []model.DownloadOption {
	proxy := strings.TrimSpace(f.proxy)
	if proxy == "" {
		proxy = cfg.Network.Proxy
	}
	limit := strings.TrimSpace(f.limitSpeed)
	if limit == "" {
		limit = cfg.Network.LimitSpeed
	}
	opts := []model.DownloadOption{model.WithProxy(proxy), model.WithLimitSpeed(limit)}
	if f.username != "" || f.password != "" {
		opts = append(opts, model.WithCredentials(f.username, f.password))
	}
	if f.cookiesFile != "" {
		opts = append(opts, model.WithCookiesFile(f.cookiesFile))
	}
	return opts
}

type processingFlags struct {
	process      bool
	crop         string
	resize       string
	rotate       int
	fps          int
	removeAudio  bool
	extractAudio bool
	audioFormat  string
	videoCodec   string
	audioCodec   string
	videoBitrate string
	audioBitrate string
}

var processingFlagNames = []string{
	"crop", "resize", "rotate", "fps", "remove-audio", "extract-audio",
	"audio-format", "video-codec", "audio-codec", "video-bitrate", "audio-bitrate",
}

func (f *processingFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.BoolVar(&f.process, "process", false, "Post-process the download with ffmpeg")
	flags.StringVar(&f.crop, "crop", "", "Crop as w:h:x:y")
	flags.StringVar(&f.resize, "resize", "", "Resize as WxH (-1 keeps aspect ratio)")
	flags.IntVar(&f.rotate, "rotate", 0, "Rotate clockwise by degrees (multiples of 90)")
	flags.IntVar(&f.fps, "fps", 0, "Target frame rate")
	flags.BoolVar(&f.removeAudio, "remove-audio", false, "Drop all audio streams")
	flags.BoolVar(&f.extractAudio, "extract-audio", false, "Produce an audio-only file")
	flags.StringVar(&f.audioFormat, "audio-format", model.DefaultAudioFormat, "Audio format for --extract-audio")
	flags.StringVar(&f.videoCodec, "video-codec", model.DefaultVideoCodec, "Video encoder")
	flags.StringVar(&f.audioCodec, "audio-codec", model.DefaultAudioCodec, "Audio encoder")
	flags.StringVar(&f.videoBitrate, "video-bitrate", "", "Target video bitrate such as 2M")
	flags.StringVar(&f.audioBitrate, "audio-bitrate", "", "Target audio bitrate such as 192k")
}

// build returns nil when processing was neither enabled nor implied by a
// processing flag.
func (f *processingFlags) build(cmd *cobra.Command) (*model.ProcessingConfig, error) {
	requested := f.process
	for _, name := range processingFlagNames {
		if cmd.Flags().Changed(name) {
			requested = true
			break
		}
	}
	if !requested {
		return nil, nil
	}
	opts := []model.ProcessingOption{
		model.WithCrop(f.crop),
		model.WithResize(f.resize),
		model.WithFPS(f.fps),
		model.WithCodecs(f.videoCodec, f.audioCodec),
		model.WithBitrates(f.videoBitrate, f.audioBitrate),
	}
	if cmd.Flags().Changed("rotate") {
		opts = append(opts, model.WithRotate(f.rotate))
	}
	if f.removeAudio {
		opts = append(opts, model.WithRemoveAudio())
	}
	if f.extractAudio {
		opts = append(opts, model.WithExtractAudio(f.audioFormat))
	}
	proc, err := model.NewProcessingConfig(opts...)
	if err != nil {
		return nil, err
	}
	return &proc, nil
}

func newVideoCommand(ctx *commandContext) *cobra.Command {
	videoCmd := &cobra.Command{
		Use:   "video",
		Short: "Video downloads",
	}
	videoCmd.AddCommand(newVideoDownloadCommand(ctx))
	videoCmd.AddCommand(newVideoFormatsCommand(ctx))
	return videoCmd
}

func newVideoDownloadCommand(ctx *commandContext) *cobra.Command {
	var (
		output   string
		quality  string
		formatID string
		transfer transferFlags
		proc     processingFlags
	)

	cmd := &cobra.Command{
		Use:   "download URL",
		Short: "Download a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunner(func(cfg *config.Config, runner *workflow.Runner) error {
				dir := strings.TrimSpace(output)
				if dir == "" {
					dir = cfg.Paths.VideoDir
				}
				opts := append(transfer.options(cfg), model.WithQuality(quality), model.WithFormatID(formatID))
				processing, err := proc.build(cmd)
				if err != nil {
					return reportFailure(cmd.ErrOrStderr(), "Download", err)
				}
				if processing != nil {
					opts = append(opts, model.WithProcessing(*processing))
				}
				req, err := model.NewDownloadConfig(args[0], dir, opts...)
				if err != nil {
					return reportFailure(cmd.ErrOrStderr(), "Download", err)
				}

				result := runner.RunVideo(cmd.Context(), req)
				if !result.Success {
					return reportFailure(cmd.ErrOrStderr(), "Download", result.Err)
				}
				printLine(cmd.OutOrStdout(), statusOK, "Downloaded %s (%s in %s)",
					result.FilePath,
					humanize.IBytes(uint64(result.FileSize)),
					result.DownloadTime.Round(time.Millisecond),
				)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory (defaults to paths.video_dir)")
	cmd.Flags().StringVarP(&quality, "quality", "q", "best", "Quality: best, worst, or a resolution such as 720p")
	cmd.Flags().StringVarP(&formatID, "format-id", "f", "", "Exact format id (overrides --quality)")
	cmd.Flags().StringVar(&transfer.limitSpeed, "limit-speed", "", "Bandwidth cap such as 1M or 500K")
	transfer.register(cmd)
	proc.register(cmd)
	return cmd
}

func newVideoFormatsCommand(ctx *commandContext) *cobra.Command {
	var transfer transferFlags

	cmd := &cobra.Command{
		Use:   "formats URL",
		Short: "List the formats available for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			req, err := model.NewDownloadConfig(args[0], cfg.Paths.VideoDir, transfer.options(cfg)...)
			if err != nil {
				return reportFailure(cmd.ErrOrStderr(), "Inspect", err)
			}
			dl := downloader.New(cfg, downloader.WithLogger(ctx.loggerValue()))
			info, err := dl.Inspect(cmd.Context(), req)
			if err != nil {
				return reportFailure(cmd.ErrOrStderr(), "Inspect", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", info.Title, info.Platform)
			if len(info.Formats) == 0 {
				printLine(out, statusWarn, "No formats available")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Ext", "Resolution", "FPS", "Video", "Audio", "Size", "Direct", "Note"},
				formatRows(info.Formats),
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
	transfer.register(cmd)
	return cmd
}

func formatRows(formats []extract.Format) [][]string {
	rows := make([][]string, 0, len(formats))
	for _, f := range formats {
		resolution := "audio only"
		if f.HasVideo() {
			resolution = "?"
			if f.Width > 0 && f.Height > 0 {
				resolution = fmt.Sprintf("%dx%d", f.Width, f.Height)
			} else if f.Height > 0 {
				resolution = fmt.Sprintf("%dp", f.Height)
			}
		}
		fps := ""
		if f.FPS > 0 {
			fps = strconv.FormatFloat(f.FPS, 'f', -1, 64)
		}
		size := ""
		if n := f.Size(); n > 0 {
			size = humanize.IBytes(uint64(n))
		}
		rows = append(rows, []string{
			f.ID,
			f.Ext,
			resolution,
			fps,
			codecLabel(f.VCodec),
			codecLabel(f.ACodec),
			size,
			yesNo(f.Transferable()),
			f.Note,
		})
	}
	return rows
}

func codecLabel(codec string) string {
	if codec == "" || strings.EqualFold(codec, "none") {
		return "-"
	}
	return codec
}
