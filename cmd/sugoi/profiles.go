package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ayusman/sugoi/internal/app"
	"github.com/ayusman/sugoi/internal/profile"
	"github.com/ayusman/sugoi/internal/protocol"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List remembered game profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			ps, err := a.Profiles().List()
			if err != nil {
				return err
			}
			if len(ps) == 0 {
				fmt.Println(mutedStyle.Render("no profiles yet"))
				return nil
			}
			fmt.Println(headerStyle.Render(fmt.Sprintf("%-12s %-24s %-9s %-6s %-24s %s", "IDENTITY", "GAME", "SIZE", "ENGINE", "HOOK", "LAST USED")))
			for _, p := range ps {
				fmt.Printf("%-12s %-24s %-9s %-6s %-24s %s\n",
					shortID(p.Identity),
					p.ExeName,
					humanize.Bytes(uint64(p.ExeSize)),
					p.Variant,
					describeSelector(p.Selector),
					humanize.RelTime(p.LastUsed, time.Now(), "ago", "from now"),
				)
			}
			return nil
		})
	},
}

var profilesForgetCmd = &cobra.Command{
	Use:   "forget IDENTITY",
	Short: "Delete a game profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			id, err := findProfile(a, args[0])
			if err != nil {
				return err
			}
			if err := a.Profiles().Delete(id); err != nil {
				return err
			}
			fmt.Printf("Forgot %s\n", id)
			return nil
		})
	},
}

var checkHookCmd = &cobra.Command{
	Use:   "check-hook CODE",
	Short: "Validate a manual hook code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !protocol.ValidHookCode(args[0]) {
			return fmt.Errorf("%w: %q", protocol.ErrInvalidHookCode, args[0])
		}
		fmt.Println(enabledStyle.Render("valid hook code"))
		return nil
	},
}

func init() {
	profilesCmd.AddCommand(profilesForgetCmd)
}

// findProfile resolves an identity or a unique identity prefix.
func findProfile(a *app.App, prefix string) (profile.Identity, error) {
	ps, err := a.Profiles().List()
	if err != nil {
		return "", err
	}
	var found []profile.Identity
	for _, p := range ps {
		if len(prefix) <= len(p.Identity) && string(p.Identity)[:len(prefix)] == prefix {
			found = append(found, p.Identity)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("no profile matches %q", prefix)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%q matches %d profiles", prefix, len(found))
	}
}

func shortID(id profile.Identity) string {
	if len(id) > 12 {
		return string(id[:12])
	}
	return string(id)
}

func describeSelector(s profile.Selector) string {
	if s.Kind == profile.SelectorManual {
		return "manual " + s.Code
	}
	if s.Label != "" {
		return s.HookID + " " + s.Label
	}
	return s.HookID
}
