package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"duet/internal/assets"
	"duet/internal/config"
	"duet/internal/pipeline"
	"duet/internal/scriptgen"
	"duet/internal/services/tts"
)

type topicExtractor interface {
	ExtractTopics(ctx context.Context, document string, maxTopics int) ([]scriptgen.Topic, error)
}

var newTopicExtractor = func(cfg *config.Config, logger *slog.Logger) topicExtractor {
	return scriptgen.NewFromConfig(cfg, logger)
}

func newTopicsCommand(ctx *commandContext) *cobra.Command {
	var (
		maxTopics int
		create    bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "topics <document>",
		Short: "Suggest video topics from a text document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			document := string(data)
			topics, err := newTopicExtractor(cfg, logger).ExtractTopics(cmd.Context(), document, maxTopics)
			if err != nil {
				return err
			}

			if !create {
				if asJSON {
					return writeJSON(cmd, topics)
				}
				out := cmd.OutOrStdout()
				if len(topics) == 0 {
					fmt.Fprintln(out, "No topics found")
					return nil
				}
				rows := make([][]string, 0, len(topics))
				for i, topic := range topics {
					rows = append(rows, []string{fmt.Sprintf("%d", i+1), truncateCell(topic.Title), topic.Style, truncateCell(topic.Description)})
				}
				fmt.Fprintln(out, renderTable([]string{"#", "Title", "Style", "Description"}, rows, 0))
				return nil
			}

			return ctx.withManager(cmd, func(mgr *pipeline.Manager) error {
				var views []projectView
				for _, topic := range topics {
					out, err := mgr.Create(cmd.Context(), pipeline.CreateRequest{
						Topic:           topic.Title,
						Style:           topic.Style,
						DocumentContext: document,
					})
					if err != nil {
						return err
					}
					if out.Project == nil {
						continue
					}
					views = append(views, newProjectView(out.Project, false))
					if !asJSON {
						fmt.Fprintf(cmd.OutOrStdout(), "Project %d (%s): %s\n", out.Project.ID, out.Project.Status.Label(), topic.Title)
					}
				}
				if asJSON {
					return writeJSON(cmd, views)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&maxTopics, "max", 10, "Maximum number of topics")
	cmd.Flags().BoolVar(&create, "create", false, "Create a project for every topic")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newVoicesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List text-to-speech voices available to the account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client := tts.NewClient(tts.Config{
				APIKey:         cfg.Voiceover.APIKey,
				BaseURL:        cfg.Voiceover.BaseURL,
				ModelID:        cfg.Voiceover.ModelID,
				TimeoutSeconds: cfg.Voiceover.TimeoutSeconds,
			})
			voices, err := client.ListVoices(cmd.Context())
			if err != nil {
				return fmt.Errorf("list voices: %w", err)
			}
			if asJSON {
				return writeJSON(cmd, voices)
			}
			rows := make([][]string, 0, len(voices))
			for _, voice := range voices {
				var role string
				switch voice.ID {
				case cfg.Voiceover.QuestionerVoiceID:
					role = "questioner"
				case cfg.Voiceover.ExplainerVoiceID:
					role = "explainer"
				}
				rows = append(rows, []string{voice.ID, voice.Name, voice.Category, role})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Category", "Default For"}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newAssetsCommand(ctx *commandContext) *cobra.Command {
	assetsCmd := &cobra.Command{
		Use:   "assets",
		Short: "Manage characters, backgrounds, and music",
	}
	assetsCmd.AddCommand(newAssetsListCommand(ctx))
	assetsCmd.AddCommand(newAssetsAddCommand(ctx))
	return assetsCmd
}

func parseKind(value string) (assets.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "character", "characters":
		return assets.KindCharacter, nil
	case "background", "backgrounds":
		return assets.KindBackground, nil
	case "music":
		return assets.KindMusic, nil
	default:
		return "", fmt.Errorf("unknown asset kind %q (expected character, background, or music)", value)
	}
}

func newAssetsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list [kind]",
		Short: "List library assets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			kinds := []assets.Kind{assets.KindCharacter, assets.KindBackground, assets.KindMusic}
			if len(args) == 1 {
				kind, err := parseKind(args[0])
				if err != nil {
					return err
				}
				kinds = []assets.Kind{kind}
			}

			lib := assets.New(cfg.Paths.AssetsDir)
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for i, kind := range kinds {
				if i > 0 {
					fmt.Fprintln(out)
				}
				for _, line := range renderSectionHeader(string(kind), colorize) {
					fmt.Fprintln(out, line)
				}
				refs, err := lib.List(kind)
				if err != nil {
					return fmt.Errorf("list %s: %w", kind, err)
				}
				if len(refs) == 0 {
					fmt.Fprintln(out, "  (none)")
					continue
				}
				if kind != assets.KindCharacter {
					for _, ref := range refs {
						fmt.Fprintf(out, "  %s\n", ref)
					}
					continue
				}
				rows := make([][]string, 0, len(refs))
				for _, ref := range refs {
					char, err := lib.Character(ref)
					if err != nil {
						rows = append(rows, []string{ref, "-", "-", "-", truncateCell(err.Error())})
						continue
					}
					rows = append(rows, []string{ref, char.Name, strings.Join(char.PoseNames(), ", "), yesNo(char.VoiceID != ""), ""})
				}
				fmt.Fprintln(out, renderTable([]string{"Ref", "Name", "Poses", "Own Voice", "Problem"}, rows))
			}
			return nil
		},
	}
}

func newAssetsAddCommand(ctx *commandContext) *cobra.Command {
	var req assets.ImportRequest

	cmd := &cobra.Command{
		Use:   "add <kind> <file>",
		Short: "Copy a file into the asset library",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			if kind == assets.KindCharacter && strings.TrimSpace(req.Name) == "" {
				return errors.New("--name is required for characters")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			req.Kind = kind
			req.Source = args[1]
			ref, err := assets.New(cfg.Paths.AssetsDir).Import(req)
			if err != nil {
				return fmt.Errorf("add %s: %w", strings.TrimSuffix(string(kind), "s"), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", ref)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Character ref, or file name for backgrounds and music")
	cmd.Flags().StringVar(&req.Pose, "pose", "", "Pose name for a character image (default neutral)")
	cmd.Flags().StringVar(&req.Style, "style", "", "Style folder for backgrounds and music (default general)")
	return cmd
}
