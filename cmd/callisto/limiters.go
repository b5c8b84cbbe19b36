package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/config"
)

var limitersFlags struct {
	format string
}

var limitersCmd = &cobra.Command{
	Use:   "limiters",
	Short: "List configured limiters",
	Long: `List the limiters defined in the configuration file, with their
strategy and parameters.

Examples:
  # List limiters from the default config file
  callisto limiters

  # JSON output
  callisto limiters --format json`,
	RunE: runLimiters,
}

func init() {
	rootCmd.AddCommand(limitersCmd)

	limitersCmd.Flags().StringVar(&limitersFlags.format, "format", "text", "output format: text, json")
}

// limiterInfo is one limiter row in the command output.
type limiterInfo struct {
	Name     string  `json:"name"`
	Strategy string  `json:"strategy"`
	Rate     float64 `json:"rate"`
	Per      string  `json:"per,omitempty"`
	Capacity int64   `json:"capacity,omitempty"`
	Window   string  `json:"window,omitempty"`
}

func runLimiters(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}

	infos := make([]limiterInfo, 0, len(cfg.Limiters))
	for name, lc := range cfg.Limiters {
		info := limiterInfo{
			Name:     name,
			Strategy: lc.Strategy,
			Rate:     lc.Rate,
			Capacity: lc.Capacity,
		}
		if lc.Per > 0 {
			info.Per = lc.Per.String()
		}
		if lc.Window > 0 {
			info.Window = lc.Window.String()
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	if limitersFlags.format == "json" {
		formatter := cli.NewFormatter(cli.FormatJSON)
		return formatter.FormatTo(os.Stdout, infos)
	}

	if len(infos) == 0 {
		fmt.Println("No limiters configured")
		return nil
	}
	for _, info := range infos {
		fmt.Printf("%-28s %-16s rate=%g", info.Name, info.Strategy, info.Rate)
		if info.Per != "" {
			fmt.Printf("/%s", info.Per)
		}
		if info.Capacity > 0 {
			fmt.Printf(" capacity=%d", info.Capacity)
		}
		if info.Window != "" {
			fmt.Printf(" window=%s", info.Window)
		}
		fmt.Println()
	}
	return nil
}
