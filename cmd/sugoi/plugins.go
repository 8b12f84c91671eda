package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/sugoi/internal/app"
	"github.com/ayusman/sugoi/internal/plugin"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	enabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List and configure text plugins",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			printPlugins(a.Plugins().Descriptors())
			return nil
		})
	},
}

var pluginsEnableCmd = &cobra.Command{
	Use:   "enable IDENTITY",
	Short: "Enable a plugin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return applyUpdate(args[0], plugin.Update{Enabled: boolPtr(true)})
	},
}

var pluginsDisableCmd = &cobra.Command{
	Use:   "disable IDENTITY",
	Short: "Disable a plugin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return applyUpdate(args[0], plugin.Update{Enabled: boolPtr(false)})
	},
}

var pluginsMoveCmd = &cobra.Command{
	Use:   "move IDENTITY POSITION",
	Short: "Move a plugin to a position in the pipeline",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("position %q: %w", args[1], err)
		}
		return applyUpdate(args[0], plugin.Update{Position: &pos})
	},
}

var pluginsSetCmd = &cobra.Command{
	Use:   "set IDENTITY NAME VALUE",
	Short: "Change a plugin setting",
	Long: `Change a plugin setting. VALUE is parsed as a YAML scalar, so 12, true and
"text" become a number, a boolean and a string.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var value any
		if err := yaml.Unmarshal([]byte(args[2]), &value); err != nil {
			return fmt.Errorf("parse value: %w", err)
		}
		return applyUpdate(args[0], plugin.Update{Settings: map[string]any{args[1]: value}})
	},
}

func init() {
	pluginsCmd.AddCommand(pluginsEnableCmd, pluginsDisableCmd, pluginsMoveCmd, pluginsSetCmd)
}

func boolPtr(b bool) *bool { return &b }

// withApp builds the app without running it. The registry may be used directly.
func withApp(fn func(a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(cfg, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func applyUpdate(identity string, u plugin.Update) error {
	return withApp(func(a *app.App) error {
		if err := a.Plugins().Apply(identity, u); err != nil {
			return fmt.Errorf("%s: %w", identity, err)
		}
		d, err := a.Plugins().Describe(identity)
		if err != nil {
			return err
		}
		printPlugins([]plugin.Descriptor{d})
		return nil
	})
}

func printPlugins(ds []plugin.Descriptor) {
	fmt.Fprintln(os.Stdout, headerStyle.Render(fmt.Sprintf("%-3s %-28s %-8s %s", "#", "IDENTITY", "STATE", "NAME")))
	for _, d := range ds {
		state := mutedStyle.Render(fmt.Sprintf("%-8s", "off"))
		if d.Enabled {
			state = enabledStyle.Render(fmt.Sprintf("%-8s", "on"))
		}
		fmt.Printf("%-3d %-28s %s %s\n", d.OrderIndex, d.Identity, state, d.Name)
		for _, s := range d.Settings {
			fmt.Println(mutedStyle.Render(fmt.Sprintf("      %s = %v  %s", s.Name, s.Value, strings.TrimSpace(s.Description))))
		}
	}
}
