package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/logflow/pmdash/pkg/config"
	"github.com/logflow/pmdash/pkg/ingest"
	"github.com/logflow/pmdash/pkg/mining"
	"github.com/logflow/pmdash/pkg/server"
	"github.com/logflow/pmdash/pkg/store"
	"github.com/logflow/pmdash/pkg/watch"
)

var (
	servePort   int
	serveHost   string
	serveSource string
	serveWatch  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	Long: `Start an HTTP server exposing the analysis API.

The server starts with a generated sample log unless --source is given.
Uploads to /api/upload replace the active log; /api/reset restores a
fresh sample. The port defaults to 10000 and honors $PORT.

Examples:
  pmdash serve
  pmdash serve --port 3000
  pmdash serve --source events.csv --watch
  PMDASH_STORE=redis pmdash serve`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default: config, $PORT or 10000)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: config or 0.0.0.0)")
	serveCmd.Flags().StringVarP(&serveSource, "source", "s", "", "Event log to load at startup (path or s3:// URI)")
	serveCmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "Reload --source whenever it changes")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := cfgManager.Get()
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if serveWatch && (serveSource == "" || ingest.IsS3URI(serveSource)) {
		return fmt.Errorf("--watch needs a local --source file")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srvCfg, err := serverConfig(cfg)
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, storeConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	srv := server.New(
		srvCfg,
		mining.NewEngine(engineOptions(cfg), logger),
		st,
		ingest.NewLoader(loaderOptions(cfg)),
		logger,
	)
	defer srv.Close()

	if serveSource != "" {
		if err := srv.LoadSource(ctx, serveSource); err != nil {
			return fmt.Errorf("failed to load %s: %w", serveSource, err)
		}
	} else if err := srv.Bootstrap(ctx); err != nil {
		return fmt.Errorf("failed to publish sample log: %w", err)
	}

	var w *watch.Watcher
	if serveWatch {
		if w, err = watch.NewWatcher(logger); err != nil {
			return err
		}
		defer w.Close()

		w.OnReload = srv.LoadSource
		if err := w.Watch(serveSource); err != nil {
			return err
		}
	}

	addr := net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // Disable for SSE
		IdleTimeout:  120 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	printBanner(listener.Addr())
	logger.Info().
		Str("addr", listener.Addr().String()).
		Str("store", cfg.Store.Backend).
		Str("version", version).
		Msg("pmdash server started")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpServer.Serve(listener); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		srv.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if w != nil {
		g.Go(func() error {
			if err := w.Run(gctx); err != nil && err != context.Canceled {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

func serverConfig(cfg *config.Config) (server.Config, error) {
	limit, err := config.ParseSize(cfg.Server.MaxUploadSize)
	if err != nil {
		return server.Config{}, fmt.Errorf("server.max_upload_size: %w", err)
	}
	return server.Config{
		MaxUploadSize: limit,
		CORSOrigins:   cfg.Server.CORSOrigins,
	}, nil
}

func printBanner(addr net.Addr) {
	url := "http://" + addr.String()
	if tcp, ok := addr.(*net.TCPAddr); ok && tcp.IP.IsUnspecified() {
		url = fmt.Sprintf("http://localhost:%d", tcp.Port)
	}

	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "  ╭─────────────────────────────────────╮")
	fmt.Fprintln(os.Stderr, "  │         PMDASH SERVER               │")
	fmt.Fprintln(os.Stderr, "  ├─────────────────────────────────────┤")
	fmt.Fprintf(os.Stderr, "  │  API:     %-25s │\n", url+"/api")
	fmt.Fprintln(os.Stderr, "  │                                     │")
	fmt.Fprintln(os.Stderr, "  │  Press Ctrl+C to stop               │")
	fmt.Fprintln(os.Stderr, "  ╰─────────────────────────────────────╯")
	fmt.Fprintln(os.Stderr)
}
