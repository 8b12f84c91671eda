package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/sugoi/internal/app"
	"github.com/ayusman/sugoi/internal/output"
	"github.com/ayusman/sugoi/internal/protocol"
	"github.com/ayusman/sugoi/internal/session"
)

var (
	attachPID    int
	attachEngine string
	attachCode   string
	attachSave   string
	attachServe  bool
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach to a game and print its text to the terminal",
	Long: `Attach to a running game process and stream the processed text to stdout.

A remembered hook for the game is selected automatically. Stop with Ctrl-C.

Examples:
  sugoi attach --pid 4242
  sugoi attach --pid 4242 --engine a --code HS-4@1234
  sugoi attach --pid 4242 --save script.txt`,
	Args: cobra.NoArgs,
	RunE: runAttach,
}

func init() {
	attachCmd.Flags().IntVarP(&attachPID, "pid", "p", 0, "Process id of the game")
	attachCmd.Flags().StringVarP(&attachEngine, "engine", "e", string(protocol.VariantB), "Engine variant (a or b)")
	attachCmd.Flags().StringVar(&attachCode, "code", "", "Manual hook code to install after attaching")
	attachCmd.Flags().StringVarP(&attachSave, "save", "o", "", "Save the output to this file on exit")
	attachCmd.Flags().BoolVar(&attachServe, "serve", false, "Also serve the web UI")
	attachCmd.MarkFlagRequired("pid")
}

// detachWatcher stops the command once the session ends.
type detachWatcher struct {
	session.NopSink
	cancel context.CancelFunc
}

func (d detachWatcher) StateChanged(s session.State, _ error) {
	if s == session.StateDetached {
		d.cancel()
	}
}

func runAttach(cmd *cobra.Command, args []string) error {
	variant, err := protocol.ParseVariant(attachEngine)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !attachServe {
		cfg.Server.Addr = ""
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := app.New(cfg, app.Options{
		Sinks: []session.Sink{output.NewConsole(os.Stdout), detachWatcher{cancel: cancel}},
	})
	if err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()

	if err := a.Controller().Attach(attachPID, variant); err != nil {
		cancel()
		<-errc
		return err
	}
	if attachCode != "" {
		if err := a.Controller().ManualHook(attachCode); err != nil {
			cancel()
			<-errc
			return err
		}
	}

	if err := <-errc; err != nil {
		return err
	}

	if attachSave != "" {
		if err := a.Buffer().SaveTo(attachSave); err != nil {
			if errors.Is(err, output.ErrEmpty) {
				fmt.Fprintln(os.Stderr, "nothing to save")
				return nil
			}
			return err
		}
		fmt.Printf("Saved output to %s\n", attachSave)
	}
	return nil
}
