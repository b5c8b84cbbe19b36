package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/config"
)

var validateFlags struct {
	env bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a Callisto configuration file.

The validate command parses the YAML configuration, applies defaults, and
checks every limiter definition, the dispatch settings, and the janitor
schedule. It exits non-zero on the first problem found.

Examples:
  # Validate the default config file
  callisto validate

  # Validate a specific file
  callisto validate --config /etc/callisto/config.yaml

  # Include CALLISTO_* environment overrides in the validation
  callisto validate --env`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.env, "env", false, "apply CALLISTO_* environment overrides before validating")
}

func runValidate(cmd *cobra.Command, args []string) error {
	var (
		cfg *config.Config
		err error
	)
	if validateFlags.env {
		cfg, err = config.LoadConfigWithEnvOverrides(cfgFile)
	} else {
		cfg, err = config.LoadConfig(cfgFile)
	}
	if err != nil {
		return err
	}

	fmt.Printf("✓ %s is valid\n", cfgFile)
	fmt.Printf("  Limiters: %d\n", len(cfg.Limiters))
	fmt.Printf("  Dispatch limiters: %v\n", cfg.Dispatch.Limiters)
	fmt.Printf("  Max retries: %d\n", cfg.Dispatch.MaxRetries)
	fmt.Printf("  Max concurrent: %d\n", cfg.Dispatch.MaxConcurrent)
	if cfg.History.Enabled {
		fmt.Printf("  History: %s\n", cfg.History.Backend)
	} else {
		fmt.Println("  History: disabled")
	}
	return nil
}
