package startup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SlpAus/library-borrow-backend/internal/store"
	"github.com/spf13/viper"
)

// Seed 是初始数据文件的结构，支持 yaml 和 json
type Seed struct {
	Users []string `mapstructure:"users"`
	Books []string `mapstructure:"books"`
}

// LoadSeed 读取初始数据文件，格式由扩展名决定
func LoadSeed(path string) (*Seed, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取初始数据文件 %s: %w", path, err)
	}
	var seed Seed
	if err := v.Unmarshal(&seed); err != nil {
		return nil, fmt.Errorf("无法解析初始数据文件 %s: %w", path, err)
	}
	return &seed, nil
}

// InitializeApplication 是应用启动时执行的总入口：
// 迁移表结构，并在配置了 seedFile 时向空库导入初始数据。
func InitializeApplication(ctx context.Context, s *store.Store, seedFile string, log *slog.Logger) error {
	log.Info("开始应用初始化...")

	if err := s.Migrate(ctx); err != nil {
		return err
	}

	if seedFile != "" {
		seed, err := LoadSeed(seedFile)
		if err != nil {
			return err
		}
		imported, err := PrimeDB(ctx, s, seed)
		if err != nil {
			return err
		}
		if imported {
			log.Info("初始数据导入完成", "users", len(seed.Users), "books", len(seed.Books))
		} else {
			log.Info("数据库中已有数据，跳过初始数据导入")
		}
	}

	log.Info("应用初始化完成！")
	return nil
}

// PrimeDB 在用户表和图书表都为空时写入初始数据，整个过程在一个事务中完成。
// 返回值表示是否实际导入了数据。
func PrimeDB(ctx context.Context, s *store.Store, seed *Seed) (bool, error) {
	imported := false
	err := s.Transaction(ctx, func(tx *store.Store) error {
		users, err := tx.ListUsers(ctx)
		if err != nil {
			return err
		}
		books, err := tx.ListBooks(ctx)
		if err != nil {
			return err
		}
		if len(users) > 0 || len(books) > 0 {
			return nil
		}

		for _, name := range seed.Users {
			if _, err := tx.CreateUser(ctx, name); err != nil {
				return err
			}
		}
		for _, title := range seed.Books {
			if _, err := tx.CreateBook(ctx, title); err != nil {
				return err
			}
		}
		imported = true
		return nil
	})
	return imported, err
}
