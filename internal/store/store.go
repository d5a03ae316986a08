package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SlpAus/library-borrow-backend/internal/platform/apperror"
	"gorm.io/gorm"
)

// ErrOpenBorrowExists 表示违反了“同一本书最多一条未归还记录”的唯一约束
var ErrOpenBorrowExists = errors.New("book already has an open borrow")

// ErrBorrowNotOpen 表示要归还的借阅记录已经不处于未归还状态
var ErrBorrowNotOpen = errors.New("borrow is not open")

// Store 是基于 GORM 的持久化实现。
// 除上面两个哨兵错误外，所有数据库失败都被包装为 apperror.KindStorageUnavailable。
type Store struct {
	db *gorm.DB
}

// New 使用外部创建的数据库连接构造 Store
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate 负责自动迁移数据库表结构
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&User{}, &Book{}, &Borrow{}); err != nil {
		return fmt.Errorf("无法迁移数据库表: %w", err)
	}
	return nil
}

// Transaction 在同一个数据库事务中执行 fn，fn 收到的是绑定到该事务的 Store。
// fn 返回错误时事务回滚，错误原样返回。
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	var fnErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(&Store{db: tx})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return apperror.Storage(fmt.Errorf("事务提交失败: %w", err))
	}
	return nil
}

// --- 用户 ---

func (s *Store) CreateUser(ctx context.Context, name string) (*User, error) {
	user := User{Name: name}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, apperror.Storage(fmt.Errorf("无法创建用户: %w", err))
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	users := []User{}
	if err := s.db.WithContext(ctx).Order("id asc").Find(&users).Error; err != nil {
		return nil, apperror.Storage(fmt.Errorf("无法读取用户列表: %w", err))
	}
	return users, nil
}

// FindUser 按ID查找用户，不存在时返回 nil, nil
func (s *Store) FindUser(ctx context.Context, id uint) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).Take(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperror.Storage(fmt.Errorf("无法查询用户 %d: %w", id, err))
	}
	return &user, nil
}

// --- 图书 ---

func (s *Store) CreateBook(ctx context.Context, title string) (*Book, error) {
	book := Book{Title: title}
	if err := s.db.WithContext(ctx).Create(&book).Error; err != nil {
		return nil, apperror.Storage(fmt.Errorf("无法创建图书: %w", err))
	}
	return &book, nil
}

func (s *Store) ListBooks(ctx context.Context) ([]Book, error) {
	books := []Book{}
	if err := s.db.WithContext(ctx).Order("id asc").Find(&books).Error; err != nil {
		return nil, apperror.Storage(fmt.Errorf("无法读取图书列表: %w", err))
	}
	return books, nil
}

// FindBook 按ID查找图书，不存在时返回 nil, nil
func (s *Store) FindBook(ctx context.Context, id uint) (*Book, error) {
	var book Book
	if err := s.db.WithContext(ctx).Take(&book, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperror.Storage(fmt.Errorf("无法查询图书 %d: %w", id, err))
	}
	return &book, nil
}

// --- 借阅 ---

// FindOpenBorrowForBook 返回该书当前未归还的借阅记录，没有时返回 nil, nil
func (s *Store) FindOpenBorrowForBook(ctx context.Context, bookID uint) (*Borrow, error) {
	return s.findOpenBorrow(ctx, s.db.Where("book_id = ?", bookID))
}

// FindOpenBorrowForUserAndBook 返回该用户对该书的未归还借阅记录，没有时返回 nil, nil
func (s *Store) FindOpenBorrowForUserAndBook(ctx context.Context, userID, bookID uint) (*Borrow, error) {
	return s.findOpenBorrow(ctx, s.db.Where("user_id = ? AND book_id = ?", userID, bookID))
}

func (s *Store) findOpenBorrow(ctx context.Context, scope *gorm.DB) (*Borrow, error) {
	var borrow Borrow
	err := scope.WithContext(ctx).
		Where("returned_at IS NULL").
		Order("id asc").
		Take(&borrow).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperror.Storage(fmt.Errorf("无法查询未归还的借阅记录: %w", err))
	}
	return &borrow, nil
}

// CreateBorrow 新建一条未归还的借阅记录。
// 若该书已有未归还记录（部分唯一索引冲突），返回 ErrOpenBorrowExists。
func (s *Store) CreateBorrow(ctx context.Context, userID, bookID uint, borrowedAt time.Time) (*Borrow, error) {
	borrow := Borrow{
		UserID:     userID,
		BookID:     bookID,
		BorrowedAt: borrowedAt,
	}
	if err := s.db.WithContext(ctx).Omit("User", "Book").Create(&borrow).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: book %d", ErrOpenBorrowExists, bookID)
		}
		return nil, apperror.Storage(fmt.Errorf("无法创建借阅记录: %w", err))
	}
	return &borrow, nil
}

// UpdateBorrowOnReturn 写入归还时间和评分。
// 只更新仍未归还的记录；记录已被归还时返回 ErrBorrowNotOpen。
func (s *Store) UpdateBorrowOnReturn(ctx context.Context, borrowID uint, returnedAt time.Time, score int) (*Borrow, error) {
	db := s.db.WithContext(ctx)

	result := db.Model(&Borrow{}).
		Where("id = ? AND returned_at IS NULL", borrowID).
		Updates(map[string]any{
			"returned_at": returnedAt,
			"user_score":  score,
		})
	if result.Error != nil {
		return nil, apperror.Storage(fmt.Errorf("无法更新借阅记录 %d: %w", borrowID, result.Error))
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: borrow %d", ErrBorrowNotOpen, borrowID)
	}

	var borrow Borrow
	if err := db.Take(&borrow, borrowID).Error; err != nil {
		return nil, apperror.Storage(fmt.Errorf("无法读取借阅记录 %d: %w", borrowID, err))
	}
	return &borrow, nil
}

// ListBorrowsForBook 返回该书的全部借阅记录，按创建顺序排列
func (s *Store) ListBorrowsForBook(ctx context.Context, bookID uint) ([]Borrow, error) {
	borrows := []Borrow{}
	err := s.db.WithContext(ctx).
		Where("book_id = ?", bookID).
		Order("id asc").
		Find(&borrows).Error
	if err != nil {
		return nil, apperror.Storage(fmt.Errorf("无法读取图书 %d 的借阅记录: %w", bookID, err))
	}
	return borrows, nil
}

// ListBorrowsForUser 返回该用户的全部借阅记录，按创建顺序排列。
// includeBookTitle 为 true 时预加载关联的图书。
func (s *Store) ListBorrowsForUser(ctx context.Context, userID uint, includeBookTitle bool) ([]Borrow, error) {
	borrows := []Borrow{}
	query := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id asc")
	if includeBookTitle {
		query = query.Preload("Book")
	}
	if err := query.Find(&borrows).Error; err != nil {
		return nil, apperror.Storage(fmt.Errorf("无法读取用户 %d 的借阅记录: %w", userID, err))
	}
	return borrows, nil
}

// Ping 检查底层数据库是否可达
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return apperror.Storage(err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return apperror.Storage(fmt.Errorf("数据库不可达: %w", err))
	}
	return nil
}
