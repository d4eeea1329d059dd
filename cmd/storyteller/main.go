// Package main runs the interactive story terminal UI.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/easeaico/project-iyagi/internal/app"
	"github.com/easeaico/project-iyagi/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// 日志写入文件，避免打乱界面
	logPath := filepath.Join(os.TempDir(), "iyagi-storyteller.log")
	logFile, err := tea.LogToFile(logPath, "storyteller")
	if err != nil {
		log.Fatalf("failed to open log file: %v", err)
	}
	defer logFile.Close()
	app.SetupLoggerTo(logFile, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runtime, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize story runtime: %v", err)
	}
	defer runtime.Close()

	var chapters chapterService
	if runtime.Chapters != nil {
		chapters = runtime.Chapters
	}
	m := newModel(ctx, runtime.Controller, runtime.Tracker, chapters, runtime.ChapterLog)
	if _, err := tea.NewProgram(m, tea.WithContext(ctx)).Run(); err != nil && ctx.Err() == nil {
		log.Fatalf("storyteller exited: %v", err)
	}
	if ctx.Err() != nil {
		fmt.Println("正在关闭...")
	}
}
