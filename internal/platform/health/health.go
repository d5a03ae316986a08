package health

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const pingTimeout = 2 * time.Second

// State 定义了系统健康状态的枚举类型
type State int

const (
	StateHealthy State = iota
	StateDegraded
)

func (s State) String() string {
	if s == StateHealthy {
		return "ok"
	}
	return "unavailable"
}

// Pinger 是被检查的依赖，通常是数据库
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc 让普通函数满足 Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Checker 在每次请求时检查数据库连接，并在状态变化时记录日志
type Checker struct {
	db  Pinger
	log *slog.Logger

	mu    sync.Mutex
	state State
}

func NewChecker(db Pinger, log *slog.Logger) *Checker {
	return &Checker{db: db, log: log, state: StateHealthy}
}

// Check 执行一次检查并返回当前状态
func (c *Checker) Check(ctx context.Context) State {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	err := c.db.Ping(ctx)
	next := StateHealthy
	if err != nil {
		next = StateDegraded
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if next != c.state {
		if next == StateDegraded {
			c.log.Warn("健康检查: 数据库连接丢失，系统状态 -> [降级]", "error", err)
		} else {
			c.log.Info("健康检查: 数据库连接已恢复，系统状态 -> [健康]")
		}
		c.state = next
	}
	return next
}

// Handler 返回 GET /health 的处理函数
func (c *Checker) Handler(ctx *gin.Context) {
	state := c.Check(ctx.Request.Context())
	status := http.StatusOK
	if state != StateHealthy {
		status = http.StatusServiceUnavailable
	}
	ctx.JSON(status, gin.H{"status": state.String()})
}
