package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ricardomdn/broll/internal/config"
	"github.com/ricardomdn/broll/internal/pipeline"
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <script-file|->",
		Short: "Split a script into scenes and find a stock clip for each",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args[0])
		},
	}

	cmd.Flags().String("out", "out", "Output directory")
	cmd.Flags().String("zip", "", "Also export resolved clips to this ZIP file name")
	cmd.Flags().String("config", "", "YAML config file with resolver tunables")
	cmd.Flags().String("gemini-key", "", "Gemini API key (overrides env and keystore)")
	cmd.Flags().String("pexels-key", "", "Pexels API key (overrides env and keystore)")

	return cmd
}

func runGenerate(cmd *cobra.Command, scriptArg string) error {
	outDir, _ := cmd.Flags().GetString("out")
	zipName, _ := cmd.Flags().GetString("zip")
	configPath, _ := cmd.Flags().GetString("config")
	geminiFlag, _ := cmd.Flags().GetString("gemini-key")
	pexelsFlag, _ := cmd.Flags().GetString("pexels-key")

	script, err := readScript(scriptArg)
	if err != nil {
		return err
	}

	settings, err := loadSettings(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	cfg := pipeline.Config{
		Script:   script,
		Keys:     resolveKeys(geminiFlag, pexelsFlag),
		OutDir:   outDir,
		ZipName:  zipName,
		Settings: settings,
		Logf:     log.Printf,
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	runDir, err := pipeline.Run(ctx, cfg)
	if err != nil {
		return err
	}
	cmd.Printf("done: %s\n", runDir)
	return nil
}

func readScript(arg string) (string, error) {
	var data []byte
	var err error
	if arg == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(arg)
	}
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	script := strings.TrimSpace(string(data))
	if script == "" {
		return "", fmt.Errorf("script %s is empty", arg)
	}
	return script, nil
}

func loadSettings(path string) (*config.Config, error) {
	if path == "" {
		path = getenvDefault("BROLL_CONFIG", "")
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
