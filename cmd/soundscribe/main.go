package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/narekokr/text-guided-audio-split/internal/config"
	"github.com/narekokr/text-guided-audio-split/internal/controller"
	"github.com/narekokr/text-guided-audio-split/internal/conversation"
	"github.com/narekokr/text-guided-audio-split/internal/gateway"
	"github.com/narekokr/text-guided-audio-split/internal/identity"
	"github.com/narekokr/text-guided-audio-split/internal/playback"
	"github.com/narekokr/text-guided-audio-split/internal/tui"
)

func main() {
	root := &cobra.Command{
		Use:          "soundscribe",
		Short:        "Chat with an assistant about an audio file and collect stems and remixes",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context())
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "sessions",
		Short: "Print the session list without starting the UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSessions(cmd.Context())
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	if err := godotenv.Load(); err != nil {
		// Not an error: system environment alone is fine.
		fmt.Fprintln(os.Stderr, "no .env file, using system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// buildLogger writes to a file: the TUI owns the terminal.
func buildLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		parsed = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(parsed)
	zc.OutputPaths = []string{"soundscribe.log"}
	zc.ErrorOutputPaths = []string{"soundscribe.log"}
	return zc.Build()
}

func runTUI(ctx context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	gw, err := gateway.New(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger)
	if err != nil {
		return err
	}

	media := playback.NewManager(cfg.Playback.Addr, logger)
	go servePlayback(ctx, cfg.Playback.Addr, media.Handler(), logger)

	log := conversation.NewLog(logger)
	ctrl := controller.New(gw, log, media, gw.Base(), logger)

	provider := identity.NewTokenProvider(cfg.Identity.Token)
	gate := identity.NewGate(provider, logger)
	gate.Notify(ctrl.HandleIdentity, ctrl.HandleAuthError)
	go gate.Run(ctx)

	program := tea.NewProgram(tui.NewModel(ctx, ctrl, gate, gw.Base()), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()
	return err
}

func runSessions(ctx context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	id, err := identity.FromToken(cfg.Identity.Token)
	if err != nil {
		return err
	}

	gw, err := gateway.New(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger)
	if err != nil {
		return err
	}

	summaries, err := gw.ListSessions(ctx, id.UID)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}
	for _, s := range summaries {
		fmt.Printf("%s │ %s\n", s.ID, s.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// servePlayback runs the loopback audio server until ctx is done.
func servePlayback(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("playback server failed", zap.Error(err))
		}
	}
}
