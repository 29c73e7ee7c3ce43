package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	voicewebui "github.com/MegaGrindStone/voice-web-ui"
	"github.com/MegaGrindStone/voice-web-ui/internal/handlers"
	"github.com/MegaGrindStone/voice-web-ui/internal/services"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

var logLevelMap = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	cfgPath := pflag.StringP("config", "c", "", "Config file path")
	envFile := pflag.StringP("env", "e", ".env", "Env file path")
	port := pflag.StringP("port", "p", "", "Listen port, overrides the config file")
	logLevel := pflag.StringP("log-level", "l", "", "Log level (debug, info, warn, error)")
	pflag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error loading env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      logLevelMap[cfg.LogLevel],
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	responder, err := cfg.Completion.responder(cfg.SystemPrompt, logger)
	if err != nil {
		return fmt.Errorf("error creating responder: %w", err)
	}

	st, err := cfg.Store.open(ctx)
	if err != nil {
		return fmt.Errorf("error opening store: %w", err)
	}

	agentID, apiKey := credentialsFromEnv()
	if agentID == "" || apiKey == "" {
		logger.Warn("Vendor credentials are incomplete, signed url requests must supply them")
	}
	issuer := services.NewElevenLabs(cfg.ConvAI.Endpoint, agentID, apiKey)

	m, err := handlers.NewMain(st, issuer, responder, logger)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("error creating handlers: %w", err)
	}

	staticFS, err := fs.Sub(voicewebui.StaticFS, "static")
	if err != nil {
		_ = st.Close()
		return err
	}
	fileServer := http.FileServer(http.FS(staticFS))

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/{$}", m.HandleHome)
	mux.HandleFunc("/c/{id}", m.HandleConversation)
	mux.HandleFunc("/api/i", m.HandleSignedURL)
	mux.HandleFunc("/api/c", m.HandleTranscript)
	mux.HandleFunc("/api/text", m.HandleText)
	mux.HandleFunc("/sse/transcript", m.HandleSSE)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String("err", err.Error()))
		}
	})

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Info("Server starting",
			slog.String("port", cfg.Port),
			slog.String("store", cfg.Store.Type))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info("Start shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String("err", err.Error()))
			}
		}
		return nil
	})

	err = eg.Wait()
	if cerr := st.Close(); cerr != nil {
		logger.Error("Failed to close store", slog.String("err", cerr.Error()))
	}
	return err
}
