package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"duet/internal/fileutil"
	"duet/internal/pipeline"
	"duet/internal/scene"
)

func newReviewCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newApproveCommand(ctx),
		newRejectCommand(ctx),
		newRegenerateCommand(ctx),
	}
}

func defaultReviewer() string {
	return strings.TrimSpace(os.Getenv("USER"))
}

func newApproveCommand(ctx *commandContext) *cobra.Command {
	var (
		reviewer string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a draft script for voiceover",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(cmd, func(mgr *pipeline.Manager) error {
				out, err := mgr.Approve(cmd.Context(), id, reviewer)
				if err != nil {
					return err
				}
				return reportOutcome(cmd, "approve", out, asJSON)
			})
		},
	}

	cmd.Flags().StringVar(&reviewer, "reviewer", defaultReviewer(), "Name recorded as the reviewer")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newRejectCommand(ctx *commandContext) *cobra.Command {
	var (
		reviewer string
		notes    string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Send a script back to draft with review notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(cmd, func(mgr *pipeline.Manager) error {
				out, err := mgr.Reject(cmd.Context(), id, reviewer, notes)
				if err != nil {
					return err
				}
				return reportOutcome(cmd, "reject", out, asJSON)
			})
		},
	}

	cmd.Flags().StringVar(&reviewer, "reviewer", defaultReviewer(), "Name recorded as the reviewer")
	cmd.Flags().StringVarP(&notes, "notes", "m", "", "Review notes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newRegenerateCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "regenerate <id>",
		Short: "Write a fresh script for a draft or failed project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(cmd, func(mgr *pipeline.Manager) error {
				out, err := mgr.Regenerate(cmd.Context(), id)
				if err != nil {
					return err
				}
				return reportOutcome(cmd, "regenerate", out, asJSON)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newScriptCommand(ctx *commandContext) *cobra.Command {
	scriptCmd := &cobra.Command{
		Use:   "script",
		Short: "Export and import scripts for offline review",
	}
	scriptCmd.AddCommand(newScriptExportCommand(ctx))
	scriptCmd.AddCommand(newScriptImportCommand(ctx))
	return scriptCmd
}

func newScriptExportCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a project's script as editable YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(cmd, func(mgr *pipeline.Manager) error {
				p, err := mgr.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				if p.Script.Empty() {
					return fmt.Errorf("project %d has no script", id)
				}
				data, err := scene.MarshalReview(p.ID, p.Topic, *p.Script)
				if err != nil {
					return err
				}
				if outputPath == "" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := fileutil.WriteAtomic(outputPath, data, 0o644); err != nil {
					return fmt.Errorf("write script: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote script for project %d to %s\n", id, outputPath)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

func newScriptImportCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "import <id> <file>",
		Short: "Replace a draft script with an edited YAML document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read script: %w", err)
			}
			script, err := scene.UnmarshalReview(data)
			if err != nil {
				return err
			}
			return ctx.withManager(cmd, func(mgr *pipeline.Manager) error {
				out, err := mgr.UpdateScript(cmd.Context(), id, script)
				if err != nil {
					return err
				}
				return reportOutcome(cmd, "import script", out, asJSON)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
