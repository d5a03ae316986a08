package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/SlpAus/library-borrow-backend/api"
	"github.com/SlpAus/library-borrow-backend/internal/platform/config"
	"github.com/SlpAus/library-borrow-backend/internal/platform/database"
	"github.com/SlpAus/library-borrow-backend/internal/platform/logging"
	"github.com/SlpAus/library-borrow-backend/internal/platform/shutdown"
	"github.com/SlpAus/library-borrow-backend/internal/platform/startup"
	"github.com/SlpAus/library-borrow-backend/internal/store"
	"github.com/gin-gonic/gin"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "服务异常退出: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	slog.SetDefault(log)

	// 2. 连接数据库，迁移表结构并导入初始数据
	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("连接数据库失败: %w", err)
	}
	s := store.New(db)

	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = startup.InitializeApplication(initCtx, s, cfg.Database.SeedFile, log)
	cancel()
	if err != nil {
		_ = database.Close(db)
		return fmt.Errorf("应用初始化失败，无法启动: %w", err)
	}
	log.Info("数据库已就绪", "driver", cfg.Database.Driver)

	// 3. 组装路由
	gin.SetMode(cfg.Server.Mode)
	router := api.NewRouter(cfg.Server, api.NewHandlers(s, log), log)

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("服务器已准备就绪，开始监听", "address", cfg.Server.Address)
		serveErr <- server.ListenAndServe()
	}()

	// 4. 阻塞直到收到停机信号
	coordinator := shutdown.NewCoordinator(server, cfg.Server.ShutdownTimeout, log,
		shutdown.Closer{Name: "database", Close: func() error { return database.Close(db) }},
	)
	return coordinator.ListenForSignalsAndShutdown(serveErr)
}
