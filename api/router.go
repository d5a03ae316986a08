package api

import (
	"log/slog"
	"net/http"

	"github.com/SlpAus/library-borrow-backend/internal/book"
	"github.com/SlpAus/library-borrow-backend/internal/borrow"
	"github.com/SlpAus/library-borrow-backend/internal/platform/apperror"
	"github.com/SlpAus/library-borrow-backend/internal/platform/config"
	"github.com/SlpAus/library-borrow-backend/internal/platform/health"
	"github.com/SlpAus/library-borrow-backend/internal/platform/middleware"
	"github.com/SlpAus/library-borrow-backend/internal/platform/request"
	"github.com/SlpAus/library-borrow-backend/internal/store"
	"github.com/SlpAus/library-borrow-backend/internal/user"
	"github.com/gin-gonic/gin"
)

// Handlers 汇总了所有需要注册的处理器
type Handlers struct {
	Users   *user.Handler
	Books   *book.Handler
	Borrows *borrow.Handler
	Health  *health.Checker
}

// NewHandlers 基于同一个存储层组装借阅引擎和各业务处理器
func NewHandlers(s *store.Store, log *slog.Logger) Handlers {
	engine := borrow.NewEngine(borrow.WrapStore(s))
	return Handlers{
		Users:   user.NewHandler(user.NewService(s, engine)),
		Books:   book.NewHandler(book.NewService(s, engine)),
		Borrows: borrow.NewHandler(engine, log),
		Health:  health.NewChecker(s, log),
	}
}

// NewRouter 创建挂好全部中间件和路由的 gin 引擎
func NewRouter(cfg config.ServerConfig, h Handlers, log *slog.Logger) *gin.Engine {
	request.UseJSONFieldNames()

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.AccessLog(log),
		gin.CustomRecovery(func(c *gin.Context, recovered any) {
			log.Error("处理请求时发生panic", "panic", recovered, "request_id", middleware.GetRequestID(c))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error"})
		}),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Cors),
		apperror.Middleware(log),
	)
	router.NoRoute(apperror.NoRoute)

	SetupRoutes(router, h)
	return router
}

// SetupRoutes 注册项目的所有API路由
func SetupRoutes(router *gin.Engine, h Handlers) {
	api := router.Group("/api")
	{
		api.GET("/health", h.Health.Handler)

		// 用户相关的路由组 /api/users，借书和还书也挂在用户下
		userRoutes := api.Group("/users")
		h.Users.Register(userRoutes)
		h.Borrows.Register(userRoutes)

		// 图书相关的路由组 /api/books
		h.Books.Register(api.Group("/books"))
	}
}
