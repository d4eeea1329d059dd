// Package main boots the Project Iyagi HTTP service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/easeaico/project-iyagi/internal/app"
	"github.com/easeaico/project-iyagi/internal/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	app.SetupLogger(cfg.LogLevel)
	slog.Info("configuration loaded",
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"text_model", cfg.TextModel,
		"image_model", cfg.ImageModel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runtime, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize story runtime: %v", err)
	}
	defer runtime.Close()

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           runtime.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.HTTPAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server failed: %v", err)
		}
	case <-ctx.Done():
		fmt.Println("\n正在关闭...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", "error", err.Error())
	}
	fmt.Println("Server shutdown complete")
}
