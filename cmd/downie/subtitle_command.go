package main

import (
	"strings"

	"github.com/spf13/cobra"

	"downie/internal/config"
	"downie/internal/model"
	"downie/internal/workflow"
)

func newSubtitleCommand(ctx *commandContext) *cobra.Command {
	subtitleCmd := &cobra.Command{
		Use:   "subtitle",
		Short: "Subtitle downloads",
	}
	subtitleCmd.AddCommand(newSubtitleDownloadCommand(ctx))
	return subtitleCmd
}

func newSubtitleDownloadCommand(ctx *commandContext) *cobra.Command {
	var (
		output      string
		languages   string
		formats     string
		autoGen     bool
		noAutoGen   bool
		convertSRT  bool
		fixEncoding bool
		merge       bool
	)

	cmd := &cobra.Command{
		Use:   "download URL",
		Short: "Download subtitles for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunner(func(cfg *config.Config, runner *workflow.Runner) error {
				flags := cmd.Flags()
				dir := strings.TrimSpace(output)
				if dir == "" {
					dir = cfg.Paths.SubtitleDir
				}
				langs := cfg.Subtitles.Languages
				if flags.Changed("languages") {
					langs = model.SplitList(languages)
				}
				fmts := cfg.Subtitles.Formats
				if flags.Changed("formats") {
					fmts = model.SplitList(formats)
				}
				auto := boolFlag(cmd, "auto-generated", autoGen, cfg.Subtitles.AutoGenerated)
				if noAutoGen {
					auto = false
				}

				req, err := model.NewSubtitleConfig(args[0], dir,
					model.WithLanguages(langs...),
					model.WithFormats(fmts...),
					model.WithAutoGenerated(auto),
					model.WithConvertToSRT(boolFlag(cmd, "convert-srt", convertSRT, cfg.Subtitles.ConvertSRT)),
					model.WithFixEncoding(boolFlag(cmd, "fix-encoding", fixEncoding, cfg.Subtitles.FixEncoding)),
					model.WithMerge(boolFlag(cmd, "merge", merge, cfg.Subtitles.Merge)),
				)
				if err != nil {
					return reportFailure(cmd.ErrOrStderr(), "Subtitle download", err)
				}

				files, err := runner.RunSubtitles(cmd.Context(), req)
				if err != nil {
					return reportFailure(cmd.ErrOrStderr(), "Subtitle download", err)
				}
				out := cmd.OutOrStdout()
				if len(files) == 0 {
					printLine(out, statusWarn, "No subtitles found for %s", strings.Join(req.Languages, ", "))
					return nil
				}
				for _, file := range files {
					label := file.Language + ", " + file.Format
					if file.Auto {
						label += ", auto-generated"
					}
					printLine(out, statusOK, "Saved %s [%s]", file.Path, label)
					for _, warn := range file.Warnings {
						printLine(out, statusWarn, "  %v", warn)
					}
				}
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "", "Output directory (defaults to paths.subtitle_dir)")
	flags.StringVarP(&languages, "languages", "l", "en", "Comma-separated language codes")
	flags.StringVarP(&formats, "formats", "f", "srt", "Comma-separated subtitle formats")
	flags.BoolVar(&autoGen, "auto-generated", true, "Fall back to auto-generated captions")
	flags.BoolVar(&noAutoGen, "no-auto-generated", false, "Never use auto-generated captions")
	flags.BoolVar(&convertSRT, "convert-srt", true, "Convert other formats to SRT")
	flags.BoolVar(&fixEncoding, "fix-encoding", true, "Repair legacy text encodings to UTF-8")
	flags.BoolVar(&merge, "merge", false, "Merge languages into one file per format")
	return cmd
}

// boolFlag prefers an explicit flag over the configured default.
func boolFlag(cmd *cobra.Command, name string, value, fallback bool) bool {
	if cmd.Flags().Changed(name) {
		return value
	}
	return fallback
}
