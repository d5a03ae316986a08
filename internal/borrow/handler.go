package borrow

import (
	"log/slog"
	"net/http"

	"github.com/SlpAus/library-borrow-backend/internal/platform/request"
	"github.com/gin-gonic/gin"
)

// ReturnRequestBody 定义了还书请求体的JSON结构
type ReturnRequestBody struct {
	Score int `json:"score" binding:"required,min=1,max=5"`
}

// Handler 把借阅引擎暴露为HTTP接口
type Handler struct {
	engine *Engine
	log    *slog.Logger
}

func NewHandler(engine *Engine, log *slog.Logger) *Handler {
	return &Handler{engine: engine, log: log}
}

// Register 注册借书与还书路由，挂在 /users 路由组下
func (h *Handler) Register(users *gin.RouterGroup) {
	users.POST("/:id/borrow/:bookId", h.BorrowBook)
	users.POST("/:id/return/:bookId", h.ReturnBook)
}

// BorrowBook 处理借书请求
func (h *Handler) BorrowBook(c *gin.Context) {
	userID, err := request.UintParam(c, "id", "User ID")
	if err != nil {
		_ = c.Error(err)
		return
	}
	bookID, err := request.UintParam(c, "bookId", "Book ID")
	if err != nil {
		_ = c.Error(err)
		return
	}

	borrow, err := h.engine.BorrowBook(c.Request.Context(), userID, bookID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.log.Info("图书已借出", "user_id", userID, "book_id", bookID, "borrow_id", borrow.ID)
	c.JSON(http.StatusCreated, borrow)
}

// ReturnBook 处理还书请求，请求体中携带 1-5 的评分
func (h *Handler) ReturnBook(c *gin.Context) {
	userID, err := request.UintParam(c, "id", "User ID")
	if err != nil {
		_ = c.Error(err)
		return
	}
	bookID, err := request.UintParam(c, "bookId", "Book ID")
	if err != nil {
		_ = c.Error(err)
		return
	}

	var body ReturnRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(err)
		return
	}

	borrow, err := h.engine.ReturnBook(c.Request.Context(), userID, bookID, body.Score)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.log.Info("图书已归还", "user_id", userID, "book_id", bookID, "score", body.Score)
	c.JSON(http.StatusOK, borrow)
}
