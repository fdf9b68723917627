package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
	"gopkg.in/yaml.v3"

	grpc_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/grpc"
	http_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/http"
	memory_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/mysql"
	redis_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/redis"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	grpcpkg "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
	"github.com/JoeShih716/go-bank-ledger/pkg/redis"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

const (
	StoreMemory = "memory"
	StoreMySQL  = "mysql"
)

type Config struct {
	MySQL  mysql.Config `yaml:"mysql"`
	Redis  RedisConfig  `yaml:"redis"`
	GRPC   ServerConfig `yaml:"grpc"`
	HTTP   ServerConfig `yaml:"http"`
	Ledger LedgerConfig `yaml:"ledger"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// RedisConfig 事件串流，Enabled 為 false 時不發送事件
type RedisConfig struct {
	redis.Config `yaml:",inline"`

	Enabled bool   `yaml:"enabled"`
	Stream  string `yaml:"stream"`
}

type LedgerConfig struct {
	Store            string        `yaml:"store"` // "memory" (WAL 持久化) 或 "mysql"
	WALPath          string        `yaml:"wal_path"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	ATMDailyLimit    int64         `yaml:"atm_daily_limit"` // 貨幣單位
	Location         string        `yaml:"location"`        // 計算「一天」的時區，例如 Asia/Taipei
}

func main() {
	// 1. 載入設定
	cfg := loadConfig()

	// 2. 初始化儲存層
	store, ping, closeStore := newStore(cfg)
	defer closeStore()

	// 3. 初始化 UseCase
	loc, err := time.LoadLocation(cfg.Ledger.Location)
	if err != nil {
		log.Fatalf("Invalid ledger location %q: %v", cfg.Ledger.Location, err)
	}
	opts := []usecase.Option{
		usecase.WithLocation(loc),
		usecase.WithOperationTimeout(cfg.Ledger.OperationTimeout),
		usecase.WithATMDailyLimit(domain.FromUnits(cfg.Ledger.ATMDailyLimit)),
	}
	if publisher, closePublisher := newPublisher(cfg.Redis); publisher != nil {
		defer closePublisher()
		opts = append(opts, usecase.WithPublisher(publisher))
	}
	coreUseCase := usecase.NewCoreUseCase(store, opts...)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	var wg sync.WaitGroup

	// 4. 定存到期排程
	sweeper := usecase.NewMaturitySweeper(coreUseCase, cfg.Ledger.SweepInterval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = sweeper.Run(ctx)
	}()

	// 5. 啟動 gRPC Server (櫃台 / ATM)
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}
	s := grpc.NewServer(grpc.UnaryInterceptor(grpcpkg.UnaryServerLogger()))
	grpc_adapter.RegisterLedgerServiceServer(s, grpc_adapter.NewGrpcServer(coreUseCase))
	reflection.Register(s) // 方便 gRPC Client 測試 (如 Postman/BloomRPC)

	go func() {
		log.Printf("Starting gRPC server on %s", cfg.GRPC.Addr)
		if err := s.Serve(lis); err != nil {
			log.Fatalf("failed to serve: %v", err)
		}
	}()

	// 6. 啟動 HTTP 管理 API
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	http_adapter.NewHandler(coreUseCase).Register(router)
	router.GET("/readyz", func(c *gin.Context) {
		if err := ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("Starting HTTP server on %s", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to serve http: %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	s.GracefulStop()
	stop()
	wg.Wait()
	log.Println("Server exited")
}

// newStore 依設定建立儲存層，回傳 readiness 檢查與關閉函式
func newStore(cfg Config) (usecase.Store, func(context.Context) error, func()) {
	switch cfg.Ledger.Store {
	case StoreMySQL:
		dbClient, err := mysql.NewClient(cfg.MySQL)
		if err != nil {
			log.Fatalf("Failed to connect to MySQL: %v", err)
		}
		log.Println("Connected to MySQL successfully")

		store := mysql_adapter.NewStore(dbClient)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.Migrate(ctx); err != nil {
			log.Fatalf("Failed to migrate schema: %v", err)
		}
		return store, dbClient.Ping, func() { dbClient.Close() }
	case StoreMemory:
		walFile, err := wal.NewWAL(cfg.Ledger.WALPath)
		if err != nil {
			log.Fatalf("Failed to init WAL: %v", err)
		}
		store, err := memory_adapter.NewStore(walFile)
		if err != nil {
			log.Fatalf("Failed to recover memory store: %v", err)
		}
		log.Printf("Recovered memory store from %s", cfg.Ledger.WALPath)
		return store, func(context.Context) error { return nil }, func() { walFile.Close() }
	default:
		log.Fatalf("Invalid ledger store: %q", cfg.Ledger.Store)
		return nil, nil, nil
	}
}

// newPublisher 事件串流為附加功能，連不上 Redis 時只記錄，不影響帳務
func newPublisher(cfg RedisConfig) (usecase.Publisher, func()) {
	if !cfg.Enabled {
		return nil, nil
	}
	client, err := redis.NewClient(cfg.Config)
	if err != nil {
		log.Printf("Event stream disabled: %v", err)
		return nil, nil
	}
	log.Printf("Publishing ledger events to redis stream %q", cfg.Stream)
	return redis_adapter.NewPublisher(client.Client, cfg.Stream), func() { client.Close() }
}

func loadConfig() Config {
	path := os.Getenv("LEDGER_CONFIG")
	if path == "" {
		path = "config/config.yaml"
	}
	cfgData, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read config file: %v", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		log.Fatalf("Failed to parse config: %v", err)
	}

	// 補全預設配置 (如果 yaml 沒寫)
	if cfg.MySQL.MaxOpenConns == 0 {
		cfg.MySQL.MaxOpenConns = 100
	}
	if cfg.MySQL.MaxIdleConns == 0 {
		cfg.MySQL.MaxIdleConns = 10
	}
	if cfg.MySQL.ConnMaxLifetime == 0 {
		cfg.MySQL.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.GRPC.Addr == "" {
		cfg.GRPC.Addr = ":50051"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Ledger.Store == "" {
		cfg.Ledger.Store = StoreMemory
	}
	if cfg.Ledger.WALPath == "" {
		cfg.Ledger.WALPath = "wal.log"
	}
	if cfg.Ledger.OperationTimeout == 0 {
		cfg.Ledger.OperationTimeout = usecase.DefaultOperationTimeout
	}
	if cfg.Ledger.SweepInterval == 0 {
		cfg.Ledger.SweepInterval = time.Minute
	}
	if cfg.Ledger.ATMDailyLimit == 0 {
		cfg.Ledger.ATMDailyLimit = usecase.DefaultATMDailyLimitUnits
	}
	if cfg.Ledger.Location == "" {
		cfg.Ledger.Location = "Local"
	}
	return cfg
}
