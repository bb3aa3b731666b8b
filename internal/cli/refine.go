package cli

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/ricardomdn/broll/internal/pipeline"
)

func newRefineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refine <manifest>",
		Short: "Re-resolve one segment of a saved run",
		Long: "Re-resolve a single segment, either with a term you supply (--term) " +
			"or with a fresh AI-suggested term (--ai). All other segments are untouched.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefine(cmd, args[0])
		},
	}

	cmd.Flags().String("id", "", "Segment id to re-resolve (required)")
	cmd.Flags().String("term", "", "Replacement search term")
	cmd.Flags().Bool("ai", false, "Ask the AI for a new term instead")
	cmd.Flags().String("config", "", "YAML config file with resolver tunables")
	cmd.Flags().String("gemini-key", "", "Gemini API key (overrides env and keystore)")
	cmd.Flags().String("pexels-key", "", "Pexels API key (overrides env and keystore)")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func runRefine(cmd *cobra.Command, manifestPath string) error {
	id, _ := cmd.Flags().GetString("id")
	term, _ := cmd.Flags().GetString("term")
	useAI, _ := cmd.Flags().GetBool("ai")
	configPath, _ := cmd.Flags().GetString("config")
	geminiFlag, _ := cmd.Flags().GetString("gemini-key")
	pexelsFlag, _ := cmd.Flags().GetString("pexels-key")

	if term == "" && !useAI {
		return errors.New("either --term or --ai is required")
	}
	if term != "" && useAI {
		return errors.New("--term and --ai are mutually exclusive")
	}

	settings, err := loadSettings(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	seg, err := pipeline.Refine(ctx, pipeline.RefineConfig{
		ManifestPath: manifestPath,
		SegmentID:    id,
		Term:         term,
		Keys:         resolveKeys(geminiFlag, pexelsFlag),
		Settings:     settings,
		Logf:         log.Printf,
	})
	if err != nil {
		return err
	}
	cmd.Printf("segment %s resolved with %q: %s\n", seg.ID, seg.SearchTerm, seg.VideoURL)
	return nil
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <manifest>",
		Short: "Package a saved run's clips into a ZIP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			zipName, _ := cmd.Flags().GetString("zip")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()
			return pipeline.Export(ctx, args[0], zipName, log.Printf)
		},
	}
	cmd.Flags().String("zip", "clips.zip", "ZIP file name, written next to the manifest")
	return cmd
}
