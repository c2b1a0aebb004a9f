package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hansrobothans/logfan/internal/config"
	"github.com/hansrobothans/logfan/internal/listener"
	"github.com/hansrobothans/logfan/internal/sink"
	"github.com/hansrobothans/logfan/internal/sink/file"
)

// shutdownGrace bounds how long a signal-triggered drain may take before
// the timeout is logged and we wait out the teardown.
const shutdownGrace = 10 * time.Second

var listenFlags struct {
	configPath string
	socket     string
	quiet      bool
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Run the listener daemon",
	Long: `Bind the unix socket and fan incoming records into the configured
sinks until a signal or a producer stop frame shuts the listener down.`,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().StringVarP(&listenFlags.configPath, "config", "c", "", "config file (default logfan.{json,yaml,toml} in . or the user config dir)")
	listenCmd.Flags().StringVar(&listenFlags.socket, "socket", "", "unix socket path, overrides config")
	listenCmd.Flags().BoolVarP(&listenFlags.quiet, "quiet", "q", false, "suppress the startup banner")
}

func runListen(cmd *cobra.Command, args []string) error {
	// 1. Load and validate configuration.
	cfg, err := config.Load(listenFlags.configPath)
	if err != nil {
		return err
	}
	if listenFlags.socket != "" {
		cfg.Socket = listenFlags.socket
	}
	if listenFlags.quiet {
		cfg.Quiet = true
	}
	settings, err := cfg.Parse()
	if err != nil {
		return err
	}

	// 2. Build the sink set. Any sink that cannot open is fatal here,
	// before the socket is claimed.
	var entries []sink.Entry
	for _, fs := range settings.Files {
		fsink, err := file.New(fs.File)
		if err != nil {
			return err
		}
		entries = append(entries, sink.Entry{Sink: fsink, Threshold: fs.Level})
	}
	if settings.Console != nil {
		entries = append(entries, sink.Entry{
			Sink:      sink.NewConsole(os.Stderr, settings.Console.Color),
			Threshold: settings.Console.Level,
		})
	}

	// 3. Start the listener.
	lst, err := listener.New(listener.Config{
		SocketPath: settings.Socket,
		Sinks:      entries,
		RingSize:   settings.Buffer,
	})
	if err != nil {
		return err
	}
	if err := lst.Start(); err != nil {
		return err
	}

	if !settings.Quiet {
		printBanner(settings, entries)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// 4. Run until a signal or a stop frame ends the listener.
	g, gctx := errgroup.WithContext(context.Background())

	var status *http.Server
	if settings.StatusAddr != "" {
		status = statusServer(settings.StatusAddr, lst)
		g.Go(func() error {
			if err := status.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			log.Printf("logfand: received %v, draining", sig)
		case <-gctx.Done():
		case <-lst.Done():
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := lst.Stop(ctx); err != nil {
			log.Printf("logfand: %v", err)
		}
		return nil
	})

	g.Go(func() error {
		<-lst.Done()
		if status != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			status.Shutdown(ctx)
		}
		return nil
	})

	return g.Wait()
}
