package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ordermind/ordermind/config"
	"github.com/ordermind/ordermind/internal/app"
	"github.com/ordermind/ordermind/internal/webserver"
)

var (
	cfile   = flag.String("c", "ordermind.yml", "config file")
	initdb  = flag.Bool("initdb", false, "drop and recreate all tables, then exit")
	showver = flag.Bool("v", false, "print version and exit")
)

func main() {
	flag.Parse()

	cfg := config.LoadConfig(*cfile)
	if *showver {
		fmt.Println("ordermind", cfg.System.Version)
		return
	}

	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initdb {
		application.InitDb()
		zap.L().Info("database initialized")
		return
	}

	server := webserver.NewWebServer(cfg,
		application.ChatManager(),
		application.BulkManager(),
		application.Customers(),
		application.Orders())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			zap.L().Error("web server stopped", zap.Error(err))
		}
	case sig := <-sigCh:
		zap.L().Info("shutting down", zap.String("signal", sig.String()))
		if err := server.Stop(context.Background()); err != nil {
			zap.L().Error("graceful shutdown failed", zap.Error(err))
		}
	}
}
