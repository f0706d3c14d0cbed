package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"duet/internal/config"
	"duet/internal/pipeline"
	"duet/internal/preflight"
)

var renderPreflight = func(ctx context.Context, cfg *config.Config) []preflight.Result {
	return preflight.RunAll(ctx, cfg, preflight.Options{SkipRemote: true})
}

func newRenderCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newVoiceoverCommand(ctx),
		newRenderCommand(ctx),
		newRetryRenderCommand(ctx),
	}
}

func newVoiceoverCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "voiceover <id>",
		Short: "Synthesize the voiceover for an approved script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(cmd, func(mgr *pipeline.Manager) error {
				out, err := mgr.Synthesize(cmd.Context(), id)
				if err != nil {
					return err
				}
				return reportOutcome(cmd, "voiceover", out, asJSON)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var (
		dryRun     bool
		skipChecks bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "render <id>",
		Short: "Render the final video for an audio-ready project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if dryRun {
				return ctx.withManager(cmd, func(mgr *pipeline.Manager) error {
					plan, err := mgr.Plan(cmd.Context(), id)
					if err != nil {
						return err
					}
					argv := append([]string{cfg.FFmpeg.FFmpegBinary}, plan.Args(mgr.OutputPath(id))...)
					fmt.Fprintln(cmd.OutOrStdout(), shellJoin(argv))
					return nil
				})
			}
			if !skipChecks {
				if err := checkRenderEnvironment(cmd, cfg); err != nil {
					return err
				}
			}
			return ctx.withManager(cmd, func(mgr *pipeline.Manager) error {
				return renderProject(cmd, cfg, mgr, id, asJSON)
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the ffmpeg command without rendering")
	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "Skip local environment checks")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newRetryRenderCommand(ctx *commandContext) *cobra.Command {
	var (
		render bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "retry-render <id>",
		Short: "Return a failed project with a voiceover to audio-ready",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if render {
				if err := checkRenderEnvironment(cmd, cfg); err != nil {
					return err
				}
			}
			return ctx.withManager(cmd, func(mgr *pipeline.Manager) error {
				out, err := mgr.RetryRender(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !render || !out.Applied {
					return reportOutcome(cmd, "retry-render", out, asJSON)
				}
				return renderProject(cmd, cfg, mgr, id, asJSON)
			})
		},
	}

	cmd.Flags().BoolVar(&render, "render", false, "Render immediately after resetting")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

// renderProject runs the render while holding the workspace lock shared so
// other duet processes leave this project's RENDERING state alone.
func renderProject(cmd *cobra.Command, cfg *config.Config, mgr *pipeline.Manager, id int64, asJSON bool) error {
	release, err := holdRenderLock(cfg)
	if err != nil {
		return err
	}
	defer release()

	out, err := mgr.Render(cmd.Context(), id)
	if err != nil {
		return err
	}
	if err := reportOutcome(cmd, "render", out, asJSON); err != nil {
		return err
	}
	if !asJSON {
		fmt.Fprintf(cmd.OutOrStdout(), "Video written to %s (%s)\n", out.Project.OutputPath, formatSeconds(out.Project.DurationSeconds))
	}
	return nil
}

func checkRenderEnvironment(cmd *cobra.Command, cfg *config.Config) error {
	results := renderPreflight(cmd.Context(), cfg)
	if !preflight.Failed(results) {
		return nil
	}
	var problems []string
	for _, r := range results {
		if !r.Passed && !r.Warning {
			problems = append(problems, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	return errors.New("environment not ready for rendering (run `duet doctor`):\n  " + strings.Join(problems, "\n  "))
}

// shellJoin quotes argv for pasting into a POSIX shell.
func shellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = shellQuote(arg)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(arg string) string {
	if arg == "" {
		return "''"
	}
	safe := true
	for _, r := range arg {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=+,@%", r)) {
			safe = false
			break
		}
	}
	if safe {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
