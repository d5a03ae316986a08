package user

import (
	"net/http"

	"github.com/SlpAus/library-borrow-backend/internal/platform/request"
	"github.com/gin-gonic/gin"
)

// CreateUserRequestBody 定义了创建用户时请求体的JSON结构
type CreateUserRequestBody struct {
	Name string `json:"name" binding:"required"`
}

// UserResponse 是列表和创建接口返回的用户结构
type UserResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register 注册 /users 路由组下的用户接口
func (h *Handler) Register(users *gin.RouterGroup) {
	users.GET("", h.ListUsers)
	users.POST("", h.CreateUser)
	users.GET("/:id", h.GetUser)
}

// ListUsers 返回所有用户
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	responses := make([]UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, UserResponse{ID: u.ID, Name: u.Name})
	}
	c.JSON(http.StatusOK, responses)
}

// CreateUser 创建用户
func (h *Handler) CreateUser(c *gin.Context) {
	var body CreateUserRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(err)
		return
	}

	u, err := h.service.CreateUser(c.Request.Context(), body.Name)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, UserResponse{ID: u.ID, Name: u.Name})
}

// GetUser 返回用户详情以及过去和当前借阅的图书
func (h *Handler) GetUser(c *gin.Context) {
	id, err := request.UintParam(c, "id", "User ID")
	if err != nil {
		_ = c.Error(err)
		return
	}

	profile, err := h.service.GetUser(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
