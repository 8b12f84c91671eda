package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ayusman/sugoi/internal/app"
	"github.com/ayusman/sugoi/internal/session"
	"github.com/ayusman/sugoi/internal/tray"
)

var noTray bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the web UI and wait for attach requests",
	Long: `Start sugoi with the HTTP API, the websocket event stream and the system tray.

Examples:
  sugoi run              # Serve on the configured address with a tray icon
  sugoi run --no-tray    # Headless, stop with Ctrl-C`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&noTray, "no-tray", false, "Do not show the system tray icon")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	useTray := cfg.Tray && !noTray

	var tr *tray.Tray
	var sinks []session.Sink
	if useTray {
		tr = tray.New()
		sinks = append(sinks, tr)
	}

	a, err := app.New(cfg, app.Options{Sinks: sinks})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	url := uiURL(cfg.Server.Addr)
	fmt.Printf("Sugoi %s listening on %s\n", version, url)

	if !useTray {
		return a.Run(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- a.Run(ctx)
		tr.Quit()
	}()

	tr.OnOpenUI(func() { openBrowser(url) })
	tr.OnDetach(func() {
		if err := a.Controller().Detach(); err != nil {
			log.Printf("tray: detach: %v", err)
		}
	})
	tr.OnClearOutput(func() {
		if err := a.Controller().ClearOutput(); err != nil {
			log.Printf("tray: clear output: %v", err)
		}
	})
	tr.OnQuit(cancel)

	// The tray owns the main thread until it quits.
	tr.Run()
	cancel()
	return <-errc
}

// uiURL turns a listen address such as ":8080" into a browsable URL.
func uiURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func openBrowser(url string) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return
	}

	if err := cmd.Start(); err != nil {
		log.Printf("open browser: %v", err)
	}
}
