package book

import (
	"context"
	"fmt"
	"strings"

	"github.com/SlpAus/library-borrow-backend/internal/platform/apperror"
	"github.com/SlpAus/library-borrow-backend/internal/store"
)

// Repository 是图书模块需要的持久化能力
type Repository interface {
	CreateBook(ctx context.Context, title string) (*store.Book, error)
	ListBooks(ctx context.Context) ([]store.Book, error)
	FindBook(ctx context.Context, id uint) (*store.Book, error)
}

// ScoreReader 提供图书的平均评分
type ScoreReader interface {
	BookScore(ctx context.Context, bookID uint) (float64, error)
}

// Detail 是图书详情；Score 为 -1 表示尚无评分
type Detail struct {
	ID    uint    `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type Service struct {
	repo   Repository
	scores ScoreReader
}

func NewService(repo Repository, scores ScoreReader) *Service {
	return &Service{repo: repo, scores: scores}
}

// CreateBook 创建一本新书，书名去掉首尾空白后不能为空
func (s *Service) CreateBook(ctx context.Context, title string) (*store.Book, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperror.Validation("Name must be a non-empty string")
	}
	return s.repo.CreateBook(ctx, title)
}

func (s *Service) ListBooks(ctx context.Context) ([]store.Book, error) {
	return s.repo.ListBooks(ctx)
}

// GetBook 返回图书及其平均评分，图书不存在时返回 NotFound
func (s *Service) GetBook(ctx context.Context, id uint) (*Detail, error) {
	b, err := s.repo.FindBook(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, apperror.NotFound("Book not found")
	}

	score, err := s.scores.BookScore(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("读取图书详情失败: %w", err)
	}
	return &Detail{ID: b.ID, Name: b.Title, Score: score}, nil
}
