package borrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SlpAus/library-borrow-backend/internal/platform/apperror"
	"github.com/SlpAus/library-borrow-backend/internal/store"
)

const (
	MinScore = 1
	MaxScore = 5
)

// 面向客户端的错误消息
const (
	msgUserNotFound    = "User not found"
	msgBookNotFound    = "Book not found"
	msgAlreadyBorrowed = "Book is already borrowed by another user"
	msgNoOpenBorrow    = "No record of this book being borrowed by this user"
	msgInvalidScore    = "Score must be an integer between 1 and 5"
)

// Store 是借阅引擎依赖的持久化能力。
// 查询类方法在记录不存在时返回 nil, nil；其余失败原样返回给调用方。
type Store interface {
	FindUser(ctx context.Context, id uint) (*store.User, error)
	FindBook(ctx context.Context, id uint) (*store.Book, error)
	FindOpenBorrowForBook(ctx context.Context, bookID uint) (*store.Borrow, error)
	FindOpenBorrowForUserAndBook(ctx context.Context, userID, bookID uint) (*store.Borrow, error)
	CreateBorrow(ctx context.Context, userID, bookID uint, borrowedAt time.Time) (*store.Borrow, error)
	UpdateBorrowOnReturn(ctx context.Context, borrowID uint, returnedAt time.Time, score int) (*store.Borrow, error)
	ListBorrowsForBook(ctx context.Context, bookID uint) ([]store.Borrow, error)
	ListBorrowsForUser(ctx context.Context, userID uint, includeBookTitle bool) ([]store.Borrow, error)

	// Transaction 让“检查后写入”在同一事务中完成
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// gormStore 把 *store.Store 适配为 Store 接口
type gormStore struct {
	*store.Store
}

// WrapStore 将 GORM 实现包装为引擎所需的 Store
func WrapStore(s *store.Store) Store {
	return gormStore{Store: s}
}

func (g gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return g.Store.Transaction(ctx, func(tx *store.Store) error {
		return fn(gormStore{Store: tx})
	})
}

// Engine 执行借书、还书规则并计算评分聚合。
// 它不涉及任何HTTP细节，只返回普通数据或 apperror 错误。
type Engine struct {
	store Store
	now   func() time.Time
}

type Option func(*Engine)

// WithClock 替换引擎使用的时钟，主要用于测试
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(s Store, opts ...Option) *Engine {
	e := &Engine{
		store: s,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BorrowBook 为用户借出一本书。
// 用户或图书不存在返回 NotFound；该书已有未归还记录返回 Conflict。
func (e *Engine) BorrowBook(ctx context.Context, userID, bookID uint) (*store.Borrow, error) {
	var created *store.Borrow

	err := e.store.Transaction(ctx, func(tx Store) error {
		user, err := tx.FindUser(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return apperror.NotFound(msgUserNotFound)
		}

		book, err := tx.FindBook(ctx, bookID)
		if err != nil {
			return err
		}
		if book == nil {
			return apperror.NotFound(msgBookNotFound)
		}

		open, err := tx.FindOpenBorrowForBook(ctx, bookID)
		if err != nil {
			return err
		}
		if open != nil {
			return apperror.Conflict(msgAlreadyBorrowed)
		}

		created, err = tx.CreateBorrow(ctx, userID, bookID, e.now())
		return err
	})
	if err != nil {
		// 并发借阅时检查可能同时通过，由唯一索引兜底
		if errors.Is(err, store.ErrOpenBorrowExists) {
			return nil, apperror.Conflict(msgAlreadyBorrowed)
		}
		return nil, err
	}
	return created, nil
}

// ReturnBook 归还用户借出的书并记录评分。
// 评分必须在 [MinScore, MaxScore] 内；找不到该用户对该书的未归还记录时返回 Conflict。
func (e *Engine) ReturnBook(ctx context.Context, userID, bookID uint, score int) (*store.Borrow, error) {
	if score < MinScore || score > MaxScore {
		return nil, apperror.Validation(msgInvalidScore)
	}

	open, err := e.store.FindOpenBorrowForUserAndBook(ctx, userID, bookID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, apperror.Conflict(msgNoOpenBorrow)
	}

	updated, err := e.store.UpdateBorrowOnReturn(ctx, open.ID, e.now(), score)
	if err != nil {
		// 查询之后被并发请求抢先归还
		if errors.Is(err, store.ErrBorrowNotOpen) {
			return nil, apperror.Conflict(msgNoOpenBorrow)
		}
		return nil, err
	}
	return updated, nil
}

// BookScore 读取图书的全部借阅记录并计算平均评分，见 ComputeBookScore
func (e *Engine) BookScore(ctx context.Context, bookID uint) (float64, error) {
	borrows, err := e.store.ListBorrowsForBook(ctx, bookID)
	if err != nil {
		return 0, fmt.Errorf("计算图书 %d 评分失败: %w", bookID, err)
	}
	return ComputeBookScore(borrows), nil
}

// PastEntry 是已归还的借阅，带书名和评分
type PastEntry struct {
	Name      string `json:"name"`
	UserScore int    `json:"userScore"`
}

// PresentEntry 是仍在借阅中的书
type PresentEntry struct {
	Name string `json:"name"`
}

// History 把用户的借阅记录按是否归还分为两组
type History struct {
	Past    []PastEntry    `json:"past"`
	Present []PresentEntry `json:"present"`
}

// GetUserBorrowHistory 按借阅顺序返回用户的历史借阅与当前借阅
func (e *Engine) GetUserBorrowHistory(ctx context.Context, userID uint) (History, error) {
	borrows, err := e.store.ListBorrowsForUser(ctx, userID, true)
	if err != nil {
		return History{}, fmt.Errorf("读取用户 %d 借阅历史失败: %w", userID, err)
	}
	return partitionHistory(borrows), nil
}

func partitionHistory(borrows []store.Borrow) History {
	h := History{
		Past:    []PastEntry{},
		Present: []PresentEntry{},
	}
	for _, b := range borrows {
		if b.IsOpen() {
			h.Present = append(h.Present, PresentEntry{Name: b.Book.Title})
			continue
		}
		entry := PastEntry{Name: b.Book.Title}
		if b.UserScore != nil {
			entry.UserScore = *b.UserScore
		}
		h.Past = append(h.Past, entry)
	}
	return h
}
