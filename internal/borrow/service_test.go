package borrow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/SlpAus/library-borrow-backend/internal/platform/apperror"
	"github.com/SlpAus/library-borrow-backend/internal/platform/config"
	"github.com/SlpAus/library-borrow-backend/internal/platform/database"
	"github.com/SlpAus/library-borrow-backend/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *store.Store {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver:   config.DriverSqlite,
		Sqlite:   config.SqliteConfig{Path: filepath.Join(t.TempDir(), "borrow.db")},
		LogLevel: "silent",
	}
	db, err := database.Open(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	s := store.New(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// fixture 准备两个用户和两本书
type fixture struct {
	engine *Engine
	store  *store.Store
	u, v   *store.User
	b, c   *store.Book
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := newTestDB(t)

	f := &fixture{store: s, engine: NewEngine(WrapStore(s), WithClock(func() time.Time { return fixedNow }))}
	var err error
	f.u, err = s.CreateUser(ctx, "Enes Faruk Meniz")
	require.NoError(t, err)
	f.v, err = s.CreateUser(ctx, "Eray Aslan")
	require.NoError(t, err)
	f.b, err = s.CreateBook(ctx, "I, Robot")
	require.NoError(t, err)
	f.c, err = s.CreateBook(ctx, "Brave New World")
	require.NoError(t, err)
	return f
}

func TestBorrowBookCreatesOpenBorrow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	borrow, err := f.engine.BorrowBook(context.Background(), f.u.ID, f.b.ID)
	require.NoError(t, err)

	assert.Equal(t, f.u.ID, borrow.UserID)
	assert.Equal(t, f.b.ID, borrow.BookID)
	assert.True(t, fixedNow.Equal(borrow.BorrowedAt))
	assert.Nil(t, borrow.ReturnedAt)
	assert.Nil(t, borrow.UserScore)
}

func TestBorrowBookNotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.BorrowBook(ctx, 999, f.b.ID)
	require.Error(t, err)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	assert.EqualError(t, err, "User not found")

	_, err = f.engine.BorrowBook(ctx, f.u.ID, 999)
	require.Error(t, err)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	assert.EqualError(t, err, "Book not found")
}

func TestBorrowBookConflictRegardlessOfUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.BorrowBook(ctx, f.u.ID, f.b.ID)
	require.NoError(t, err)

	for _, userID := range []uint{f.u.ID, f.v.ID} {
		_, err = f.engine.BorrowBook(ctx, userID, f.b.ID)
		require.Error(t, err)
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
		assert.EqualError(t, err, "Book is already borrowed by another user")
	}

	// 其他书不受影响
	_, err = f.engine.BorrowBook(ctx, f.v.ID, f.c.ID)
	assert.NoError(t, err)
}

func TestConcurrentBorrowOnlyOneSucceeds(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			_, err := f.engine.BorrowBook(context.Background(), userID, f.b.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperror.KindOf(err) == apperror.KindConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}([]uint{f.u.ID, f.v.ID}[i%2])
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)

	borrows, err := f.store.ListBorrowsForBook(context.Background(), f.b.ID)
	require.NoError(t, err)
	assert.Len(t, borrows, 1)
}

func TestReturnBookSetsScoreOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.BorrowBook(ctx, f.u.ID, f.b.ID)
	require.NoError(t, err)

	returned, err := f.engine.ReturnBook(ctx, f.u.ID, f.b.ID, 5)
	require.NoError(t, err)
	require.NotNil(t, returned.ReturnedAt)
	require.NotNil(t, returned.UserScore)
	assert.True(t, fixedNow.Equal(*returned.ReturnedAt))
	assert.Equal(t, 5, *returned.UserScore)

	_, err = f.engine.ReturnBook(ctx, f.u.ID, f.b.ID, 3)
	require.Error(t, err)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
	assert.EqualError(t, err, "No record of this book being borrowed by this user")

	// 再借一次之后可以再次归还
	_, err = f.engine.BorrowBook(ctx, f.v.ID, f.b.ID)
	require.NoError(t, err)
	_, err = f.engine.ReturnBook(ctx, f.v.ID, f.b.ID, 3)
	assert.NoError(t, err)
}

func TestReturnBookRequiresMatchingUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.BorrowBook(ctx, f.u.ID, f.b.ID)
	require.NoError(t, err)

	_, err = f.engine.ReturnBook(ctx, f.v.ID, f.b.ID, 4)
	require.Error(t, err)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))

	open, err := f.store.FindOpenBorrowForBook(ctx, f.b.ID)
	require.NoError(t, err)
	require.NotNil(t, open, "错误用户的归还不应改变记录")
	assert.Nil(t, open.UserScore)
}

func TestReturnBookValidatesScore(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.BorrowBook(ctx, f.u.ID, f.b.ID)
	require.NoError(t, err)

	for _, score := range []int{0, -1, 6, 100} {
		_, err := f.engine.ReturnBook(ctx, f.u.ID, f.b.ID, score)
		require.Error(t, err, "score %d", score)
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	}

	open, err := f.store.FindOpenBorrowForBook(ctx, f.b.ID)
	require.NoError(t, err)
	assert.NotNil(t, open, "非法评分不应关闭借阅")
}

func TestHistoryAfterReturn(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.BorrowBook(ctx, f.u.ID, f.b.ID)
	require.NoError(t, err)
	_, err = f.engine.BorrowBook(ctx, f.u.ID, f.c.ID)
	require.NoError(t, err)
	_, err = f.engine.ReturnBook(ctx, f.u.ID, f.b.ID, 5)
	require.NoError(t, err)

	history, err := f.engine.GetUserBorrowHistory(ctx, f.u.ID)
	require.NoError(t, err)
	assert.Equal(t, []PastEntry{{Name: "I, Robot", UserScore: 5}}, history.Past)
	assert.Equal(t, []PresentEntry{{Name: "Brave New World"}}, history.Present)

	empty, err := f.engine.GetUserBorrowHistory(ctx, f.v.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty.Past)
	assert.NotNil(t, empty.Present)
	assert.Empty(t, empty.Past)
	assert.Empty(t, empty.Present)
}

func TestBookScoreFromStore(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	score, err := f.engine.BookScore(ctx, f.b.ID)
	require.NoError(t, err)
	assert.Equal(t, NoScore, score)

	for _, rating := range []struct {
		user  uint
		score int
	}{{f.u.ID, 4}, {f.v.ID, 5}} {
		_, err = f.engine.BorrowBook(ctx, rating.user, f.b.ID)
		require.NoError(t, err)
		_, err = f.engine.ReturnBook(ctx, rating.user, f.b.ID, rating.score)
		require.NoError(t, err)
	}
	// 未归还的借阅不影响评分
	_, err = f.engine.BorrowBook(ctx, f.u.ID, f.b.ID)
	require.NoError(t, err)

	score, err = f.engine.BookScore(ctx, f.b.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.5, score, 1e-9)
}

// failingStore 模拟存储层不可用
type failingStore struct {
	err error
}

func (s failingStore) FindUser(context.Context, uint) (*store.User, error) { return nil, s.err }
func (s failingStore) FindBook(context.Context, uint) (*store.Book, error) { return nil, s.err }
func (s failingStore) FindOpenBorrowForBook(context.Context, uint) (*store.Borrow, error) {
	return nil, s.err
}
func (s failingStore) FindOpenBorrowForUserAndBook(context.Context, uint, uint) (*store.Borrow, error) {
	return nil, s.err
}
func (s failingStore) CreateBorrow(context.Context, uint, uint, time.Time) (*store.Borrow, error) {
	return nil, s.err
}
func (s failingStore) UpdateBorrowOnReturn(context.Context, uint, time.Time, int) (*store.Borrow, error) {
	return nil, s.err
}
func (s failingStore) ListBorrowsForBook(context.Context, uint) ([]store.Borrow, error) {
	return nil, s.err
}
func (s failingStore) ListBorrowsForUser(context.Context, uint, bool) ([]store.Borrow, error) {
	return nil, s.err
}
func (s failingStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return fn(s)
}

func TestStorageErrorsPropagate(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	engine := NewEngine(failingStore{err: apperror.Storage(cause)})
	ctx := context.Background()

	_, err := engine.BorrowBook(ctx, 1, 1)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, apperror.KindStorageUnavailable, apperror.KindOf(err))

	_, err = engine.ReturnBook(ctx, 1, 1, 3)
	assert.ErrorIs(t, err, cause)

	_, err = engine.BookScore(ctx, 1)
	assert.ErrorIs(t, err, cause)

	_, err = engine.GetUserBorrowHistory(ctx, 1)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, apperror.KindStorageUnavailable, apperror.KindOf(err))
}

// racingStore 模拟检查通过之后被并发请求抢先写入的情况：
// 查询阶段看不到冲突，写入阶段才由唯一索引或条件更新拒绝。
type racingStore struct {
	failingStore
	created bool
}

func (s *racingStore) FindUser(_ context.Context, id uint) (*store.User, error) {
	return &store.User{ID: id, Name: "Enes Faruk Meniz"}, nil
}

func (s *racingStore) FindBook(_ context.Context, id uint) (*store.Book, error) {
	return &store.Book{ID: id, Title: "I, Robot"}, nil
}

func (s *racingStore) FindOpenBorrowForBook(context.Context, uint) (*store.Borrow, error) {
	return nil, nil
}

func (s *racingStore) FindOpenBorrowForUserAndBook(_ context.Context, userID, bookID uint) (*store.Borrow, error) {
	return &store.Borrow{ID: 7, UserID: userID, BookID: bookID, BorrowedAt: fixedNow}, nil
}

func (s *racingStore) CreateBorrow(context.Context, uint, uint, time.Time) (*store.Borrow, error) {
	s.created = true
	return nil, fmt.Errorf("写入借阅记录失败: %w", store.ErrOpenBorrowExists)
}

func (s *racingStore) UpdateBorrowOnReturn(context.Context, uint, time.Time, int) (*store.Borrow, error) {
	return nil, fmt.Errorf("更新借阅记录失败: %w", store.ErrBorrowNotOpen)
}

func (s *racingStore) Transaction(_ context.Context, fn func(tx Store) error) error {
	return fn(s)
}

func TestBorrowBookLosingInsertIsConflict(t *testing.T) {
	t.Parallel()

	s := &racingStore{}
	engine := NewEngine(s, WithClock(func() time.Time { return fixedNow }))

	borrow, err := engine.BorrowBook(context.Background(), 1, 1)
	require.Error(t, err)
	assert.True(t, s.created, "检查应当通过并尝试写入")
	assert.Nil(t, borrow)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
	assert.EqualError(t, err, "Book is already borrowed by another user")
}

func TestReturnBookLosingUpdateIsConflict(t *testing.T) {
	t.Parallel()

	engine := NewEngine(&racingStore{}, WithClock(func() time.Time { return fixedNow }))

	borrow, err := engine.ReturnBook(context.Background(), 1, 1, 4)
	require.Error(t, err)
	assert.Nil(t, borrow)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
	assert.EqualError(t, err, "No record of this book being borrowed by this user")
}
