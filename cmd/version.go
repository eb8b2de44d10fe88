package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fiscogo/fisco/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and configuration",
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(*cobra.Command, []string) error {
	fmt.Printf("fisco %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("  Environment: %s\n", cfg.Environment)
	fmt.Printf("  Default strategy: %s\n", cfg.DefaultStrategy)
	fmt.Printf("  Global cost ceiling: %.2f EUR\n", cfg.GlobalCostCeiling)
	fmt.Printf("  Confidence threshold: %.2f\n", cfg.ConfidenceThreshold)
	fmt.Printf("  OpenAI key: %s\n", keyStatus(cfg.OpenAIAPIKey))
	fmt.Printf("  Anthropic key: %s\n", keyStatus(cfg.AnthropicAPIKey))
	return nil
}

func keyStatus(key string) string {
	if key == "" {
		return "not set"
	}
	return "configured"
}
