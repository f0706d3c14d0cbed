package main

import (
	"slices"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "duet",
		Short:         "Render two-character explainer videos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	addGroup(rootCmd, "projects", "Projects:", newProjectCommands(ctx)...)
	addGroup(rootCmd, "pipeline", "Pipeline:", slices.Concat(
		newReviewCommands(ctx),
		[]*cobra.Command{newScriptCommand(ctx)},
		newRenderCommands(ctx),
	)...)
	addGroup(rootCmd, "library", "Library:",
		newTopicsCommand(ctx),
		newVoicesCommand(ctx),
		newAssetsCommand(ctx),
	)
	addGroup(rootCmd, "maintenance", "Maintenance:",
		newDoctorCommand(ctx),
		newTestNotifyCommand(ctx),
		newCleanCommand(ctx),
		newConfigCommand(ctx),
	)

	return rootCmd
}

func addGroup(root *cobra.Command, id, title string, cmds ...*cobra.Command) {
	root.AddGroup(&cobra.Group{ID: id, Title: title})
	for _, cmd := range cmds {
		cmd.GroupID = id
		root.AddCommand(cmd)
	}
}
