package mysql

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultConnectRetries       = 10
	defaultConnectRetryInterval = 2 * time.Second
)

// Client 封裝 GORM DB 實例
type Client struct {
	db *gorm.DB
}

// NewClient 建立並回傳一個新的 MySQL 客戶端實例 (GORM)
//
// 參數:
//
//	cfg: Config - MySQL 連線配置
//
// 回傳值:
//
//	*Client: 封裝後的 MySQL 客戶端
//	error: 若連線失敗則回傳錯誤
func NewClient(cfg Config) (*Client, error) {
	gormConfig := newGormConfig(cfg.LogLevel)

	retries := cfg.ConnectRetries
	if retries <= 0 {
		retries = defaultConnectRetries
	}
	interval := cfg.ConnectRetryInterval
	if interval <= 0 {
		interval = defaultConnectRetryInterval
	}

	var db *gorm.DB
	var err error
	for i := 0; i < retries; i++ {
		db, err = open(cfg, gormConfig)
		if err == nil {
			break
		}
		if i < retries-1 {
			log.Printf("Failed to connect to MySQL (attempt %d/%d): %v. Retrying in %v...", i+1, retries, err, interval)
			time.Sleep(interval)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql after %d attempts: %w", retries, err)
	}

	// 設定連線池參數，防止資料庫連線耗盡
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.db: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &Client{db: db}, nil
}

// NewClientWithConn 以既有的 *sql.DB (或其他 gorm.ConnPool) 建立客戶端，
// 不查詢伺服器版本也不重試，連線池參數由呼叫端自行管理
func NewClientWithConn(conn gorm.ConnPool, logLevel string) (*Client, error) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      conn,
		SkipInitializeWithVersion: true,
	}), newGormConfig(logLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm with existing connection: %w", err)
	}
	return &Client{db: db}, nil
}

func newGormConfig(logLevel string) *gorm.Config {
	return &gorm.Config{
		// 帳務寫入都走明確的 Transaction，不需要 GORM 再包一層
		SkipDefaultTransaction: true,
		// 將 driver 錯誤轉為 gorm.ErrDuplicatedKey 等通用錯誤
		TranslateError: true,
		Logger:         newLogger(logLevel),
		NowFunc:        nowUTC,
	}
}

// open 開啟連線並 Ping 確認連線可用
func open(cfg Config, gormConfig *gorm.Config) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, err
	}
	rawDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := rawDB.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// DB 回傳底層的 *gorm.DB 實例，供 adapter 使用
func (c *Client) DB() *gorm.DB {
	return c.db
}

// Ping 檢查資料庫是否可用 (health check)
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 關閉資料庫連線
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// newLogger 根據配置建立 GORM Logger
func newLogger(level string) logger.Interface {
	var logLevel logger.LogLevel
	switch level {
	case "info":
		logLevel = logger.Info
	case "warn":
		logLevel = logger.Warn
	case "silent":
		logLevel = logger.Silent
	default:
		logLevel = logger.Error // 預設只記錄錯誤
	}
	return logger.Default.LogMode(logLevel)
}
