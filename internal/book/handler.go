package book

import (
	"net/http"

	"github.com/SlpAus/library-borrow-backend/internal/platform/request"
	"github.com/gin-gonic/gin"
)

// CreateBookRequestBody 定义了创建图书时请求体的JSON结构
type CreateBookRequestBody struct {
	Name string `json:"name" binding:"required"`
}

// BookResponse 是列表和创建接口返回的图书结构
type BookResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register 注册 /books 路由组下的图书接口
func (h *Handler) Register(books *gin.RouterGroup) {
	books.GET("", h.ListBooks)
	books.POST("", h.CreateBook)
	books.GET("/:id", h.GetBook)
}

// ListBooks 返回所有图书
func (h *Handler) ListBooks(c *gin.Context) {
	books, err := h.service.ListBooks(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	responses := make([]BookResponse, 0, len(books))
	for _, b := range books {
		responses = append(responses, BookResponse{ID: b.ID, Name: b.Title})
	}
	c.JSON(http.StatusOK, responses)
}

// CreateBook 创建图书
func (h *Handler) CreateBook(c *gin.Context) {
	var body CreateBookRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(err)
		return
	}

	b, err := h.service.CreateBook(c.Request.Context(), body.Name)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, BookResponse{ID: b.ID, Name: b.Title})
}

// GetBook 返回图书详情及平均评分
func (h *Handler) GetBook(c *gin.Context) {
	id, err := request.UintParam(c, "id", "Book ID")
	if err != nil {
		_ = c.Error(err)
		return
	}

	detail, err := h.service.GetBook(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, detail)
}
