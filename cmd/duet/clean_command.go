package main

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"duet/internal/pipeline"
	"duet/internal/project"
	"duet/internal/workspace"
)

const partialRenderMaxAge = time.Hour

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove orphaned project directories and abandoned partial renders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			return ctx.withManager(cmd, func(mgr *pipeline.Manager) error {
				lock := workspaceLock(cfg)
				ok, err := lock.TryLock()
				if err != nil {
					return fmt.Errorf("acquire workspace lock: %w", err)
				}
				if !ok {
					return errors.New("a render is in progress; try again once it finishes")
				}
				defer func() { _ = lock.Unlock() }()

				projects, err := mgr.List(cmd.Context(), project.ListOptions{})
				if err != nil {
					return err
				}
				known := make(map[int64]struct{}, len(projects))
				for _, p := range projects {
					known[p.ID] = struct{}{}
				}

				orphans := workspace.CleanOrphaned(cmd.Context(), cfg.Paths.ProjectsDir, known, dryRun, logger)
				partials := workspace.CleanPartialRenders(cmd.Context(), cfg.Paths.ProjectsDir, partialRenderMaxAge, dryRun, logger)

				out := cmd.OutOrStdout()
				verb := "Removed"
				if dryRun {
					verb = "Would remove"
				}
				removed := slices.Concat(orphans.Removed, partials.Removed)
				for _, path := range removed {
					fmt.Fprintf(out, "%s %s\n", verb, path)
				}
				freed := orphans.Freed + partials.Freed
				if len(removed) == 0 {
					fmt.Fprintln(out, "Nothing to clean")
				} else {
					fmt.Fprintf(out, "%s %d entries (%s)\n", verb, len(removed), humanize.IBytes(uint64(max(freed, 0))))
				}

				failures := slices.Concat(orphans.Errors, partials.Errors)
				for _, failure := range failures {
					fmt.Fprintf(cmd.ErrOrStderr(), "Could not remove %s: %v\n", failure.Path, failure.Error)
				}
				if len(failures) > 0 {
					return fmt.Errorf("%d entries could not be removed", len(failures))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List what would be removed without deleting anything")
	return cmd
}
