package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"duet/internal/config"
	"duet/internal/pipeline"
	"duet/internal/project"
)

func newProjectCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newCreateCommand(ctx),
		newListCommand(ctx),
		newShowCommand(ctx),
		newDeleteCommand(ctx),
	}
}

func newCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		req          pipeline.CreateRequest
		documentPath string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "create <topic>",
		Short: "Create a project and generate its first script",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Topic = strings.Join(args, " ")
			if documentPath != "" {
				data, err := os.ReadFile(documentPath)
				if err != nil {
					return fmt.Errorf("read document: %w", err)
				}
				req.DocumentContext = string(data)
			}
			return ctx.withManager(cmd, func(mgr *pipeline.Manager) error {
				out, err := mgr.Create(cmd.Context(), req)
				if err != nil {
					return err
				}
				return reportOutcome(cmd, "create", out, asJSON)
			})
		},
	}

	cmd.Flags().StringVar(&req.Style, "style", "", "Script style ("+strings.Join(config.Styles, ", ")+")")
	cmd.Flags().StringVar(&req.QuestionerRef, "questioner", "", "Character reference for the questioner")
	cmd.Flags().StringVar(&req.ExplainerRef, "explainer", "", "Character reference for the explainer")
	cmd.Flags().StringVar(&req.BackgroundRef, "background", "", "Background image or video reference")
	cmd.Flags().StringVar(&req.MusicRef, "music", "", "Background music reference")
	cmd.Flags().IntVar(&req.TargetDurationSeconds, "duration", 0, "Target video length in seconds")
	cmd.Flags().StringVar(&documentPath, "document", "", "Text file to ground the script in")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses []string
		limit    int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List projects, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := project.ListOptions{Limit: limit}
			for _, value := range statuses {
				status, ok := project.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				opts.Statuses = append(opts.Statuses, status)
			}
			return ctx.withManager(cmd, func(mgr *pipeline.Manager) error {
				projects, err := mgr.List(cmd.Context(), opts)
				if err != nil {
					return fmt.Errorf("list projects: %w", err)
				}
				if asJSON {
					views := make([]projectView, 0, len(projects))
					for _, p := range projects {
						views = append(views, newProjectView(p, false))
					}
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(projects) == 0 {
					fmt.Fprintln(out, "No projects")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Topic", "Style", "Status", "Lines", "Length", "Updated"},
					projectRows(projects),
					0, 4, 5,
				))
				counts, err := mgr.Counts(cmd.Context())
				if err != nil {
					return fmt.Errorf("count projects: %w", err)
				}
				fmt.Fprintln(out, summarizeCounts(counts))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only show projects in these statuses")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of projects to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project with its script and scenes",
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
				if asJSON {
					return writeJSON(cmd, newProjectView(p, true))
				}
				out := cmd.OutOrStdout()
				printProject(out, p, shouldColorize(out))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a project and its working files",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(cmd, func(mgr *pipeline.Manager) error {
				out, err := mgr.Delete(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !out.Applied {
					return fmt.Errorf("%w: delete: %s", errRejected, out.Reason)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %d\n", id)
				return nil
			})
		},
	}
}

// summarizeCounts renders per-status totals in lifecycle order, skipping
// empty statuses.
func summarizeCounts(counts map[project.Status]int) string {
	var (
		total int
		parts []string
	)
	for _, status := range project.AllStatuses() {
		n := counts[status]
		if n == 0 {
			continue
		}
		total += n
		parts = append(parts, fmt.Sprintf("%d %s", n, strings.ToLower(status.Label())))
	}
	return fmt.Sprintf("%d projects: %s", total, strings.Join(parts, ", "))
}
