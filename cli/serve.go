package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lguibr/kamaelia/axon"
	"github.com/lguibr/kamaelia/backplane"
	"github.com/lguibr/kamaelia/chassis"
	"github.com/lguibr/kamaelia/selector"
	"github.com/lguibr/kamaelia/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a websocket backplane",
	Long: `Serve a backplane over websockets. Every client connected to /subscribe
receives whatever any client publishes; /topology reports the running
component graph as JSON.

With --stdin, lines typed on standard input are published too.`,
	RunE: runServe,
}

var serveStdin bool

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config)")
	serveCmd.Flags().String("backplane", "", "backplane name (default from config)")
	serveCmd.Flags().BoolVar(&serveStdin, "stdin", false, "publish lines read from standard input")
	bindFlags(serveCmd.Flags(), map[string]string{
		"addr":      "http_addr",
		"backplane": "backplane",
	})
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := axon.NewScheduler(schedulerOptions()...)
	srv, err := server.New(sched, cfg.Backplane, logger)
	if err != nil {
		return err
	}
	if _, _, err := selector.Services(sched, selector.WithPollInterval(cfg.SelectorPollInterval)); err != nil {
		return err
	}
	if serveStdin {
		lines := sched.Create(selector.NewLineReader(os.Stdin))
		pub := sched.Create(backplane.PublishTo(cfg.Backplane))
		sched.Spawn(chassis.Pipeline(lines, pub).WithName("stdin"))
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	schedDone := make(chan error, 1)
	go func() { schedDone <- sched.Run(runCtx) }()

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Handler()}
	httpDone := make(chan error, 1)
	go func() { httpDone <- httpSrv.ListenAndServe() }()
	logger.Info().Str("addr", cfg.HTTPAddr).Str("backplane", cfg.Backplane).Msg("serving")

	select {
	case <-ctx.Done():
	case err := <-httpDone:
		if !errors.Is(err, http.ErrServerClosed) {
			cancelRun()
			<-schedDone
			return fmt.Errorf("listen %s: %w", cfg.HTTPAddr, err)
		}
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	sched.Post(func(s *axon.Scheduler) { s.Close() })
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		cancelRun()
		<-schedDone
	}
	return nil
}
