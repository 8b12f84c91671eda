// Sugoi hooks text out of running games through an external engine, cleans it up with
// a plugin pipeline and serves it to the browser.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ayusman/sugoi/internal/config"
)

var version = "dev"

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "sugoi",
	Short:         "Sugoi - game text hooker",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "Path to the YAML config file")

	rootCmd.AddCommand(runCmd, attachCmd, pluginsCmd, profilesCmd, checkHookCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
