package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Server 是需要优雅关闭的HTTP服务器，*http.Server 满足该接口
type Server interface {
	Shutdown(ctx context.Context) error
}

// Closer 是在服务器关闭之后释放的资源，例如数据库连接
type Closer struct {
	Name  string
	Close func() error
}

// Coordinator 负责编排应用程序的优雅停机流程。
// 先停止接收新请求并等待进行中的请求完成，再依次关闭其余资源。
type Coordinator struct {
	server  Server
	timeout time.Duration
	closers []Closer
	log     *slog.Logger
}

// NewCoordinator 创建一个新的停机协调器。
func NewCoordinator(server Server, timeout time.Duration, log *slog.Logger, closers ...Closer) *Coordinator {
	return &Coordinator{
		server:  server,
		timeout: timeout,
		closers: closers,
		log:     log,
	}
}

// ListenForSignalsAndShutdown 阻塞直到收到 SIGINT/SIGTERM 或 serveErr 上有值，然后执行停机。
// serveErr 用于在服务器启动失败时同样走完资源释放流程。
func (c *Coordinator) ListenForSignalsAndShutdown(serveErr <-chan error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cause error
	select {
	case <-ctx.Done():
		c.log.Info("收到关闭信号，开始优雅停机...")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.log.Error("HTTP服务器异常退出", "error", err)
			cause = err
		}
	}
	return errors.Join(cause, c.Shutdown())
}

// Shutdown 关闭HTTP服务器并释放所有资源，返回过程中遇到的全部错误
func (c *Coordinator) Shutdown() error {
	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.server.Shutdown(shutdownCtx); err != nil {
		c.log.Error("HTTP服务器关闭错误", "error", err)
		errs = append(errs, err)
	} else {
		c.log.Info("HTTP服务器已关闭。")
	}

	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			c.log.Error("资源关闭失败", "name", closer.Name, "error", err)
			errs = append(errs, err)
			continue
		}
		c.log.Info("资源已关闭", "name", closer.Name)
	}

	c.log.Info("优雅停机完成。")
	return errors.Join(errs...)
}
