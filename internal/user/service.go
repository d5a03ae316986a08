package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/SlpAus/library-borrow-backend/internal/borrow"
	"github.com/SlpAus/library-borrow-backend/internal/platform/apperror"
	"github.com/SlpAus/library-borrow-backend/internal/store"
)

// Repository 是用户模块需要的持久化能力
type Repository interface {
	CreateUser(ctx context.Context, name string) (*store.User, error)
	ListUsers(ctx context.Context) ([]store.User, error)
	FindUser(ctx context.Context, id uint) (*store.User, error)
}

// HistoryReader 提供用户的借阅历史
type HistoryReader interface {
	GetUserBorrowHistory(ctx context.Context, userID uint) (borrow.History, error)
}

// Profile 是用户详情，包括按是否归还分组的借阅记录
type Profile struct {
	ID    uint           `json:"id"`
	Name  string         `json:"name"`
	Books borrow.History `json:"books"`
}

type Service struct {
	repo    Repository
	history HistoryReader
}

func NewService(repo Repository, history HistoryReader) *Service {
	return &Service{repo: repo, history: history}
}

// CreateUser 创建一个新用户，名字去掉首尾空白后不能为空
func (s *Service) CreateUser(ctx context.Context, name string) (*store.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.Validation("Name must be a non-empty string")
	}
	return s.repo.CreateUser(ctx, name)
}

func (s *Service) ListUsers(ctx context.Context) ([]store.User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser 返回用户及其借阅历史，用户不存在时返回 NotFound
func (s *Service) GetUser(ctx context.Context, id uint) (*Profile, error) {
	u, err := s.repo.FindUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperror.NotFound("User not found")
	}

	history, err := s.history.GetUserBorrowHistory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("读取用户详情失败: %w", err)
	}
	return &Profile{ID: u.ID, Name: u.Name, Books: history}, nil
}
