package store

import "time"

// User 定义了借阅者在数据库中的持久化模型。
// 用户创建后不可修改，也不会被删除。
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"-"`
}

// Book 定义了图书的持久化模型，同样只创建、不修改。
type Book struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Title     string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"-"`
}

// Borrow 是一条借阅记录。
// ReturnedAt 为 nil 表示图书仍未归还（OPEN）；归还后写入时间与评分（RETURNED）。
type Borrow struct {
	ID uint `gorm:"primarykey" json:"id"`

	UserID uint `gorm:"not null;index" json:"userId"`
	User   User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`

	// 部分唯一索引：同一本书最多只有一条 returned_at IS NULL 的记录
	BookID uint `gorm:"not null;index;uniqueIndex:idx_borrows_open_book,where:returned_at IS NULL" json:"bookId"`
	Book   Book `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`

	BorrowedAt time.Time  `gorm:"not null" json:"borrowedAt"`
	ReturnedAt *time.Time `json:"returnedAt"`
	UserScore  *int       `json:"userScore"`
}

// IsOpen 报告该借阅记录是否尚未归还
func (b Borrow) IsOpen() bool {
	return b.ReturnedAt == nil
}
