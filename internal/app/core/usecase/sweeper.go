package usecase

import (
	"context"
	"log"
	"time"
)

// MaturitySweeper 定期執行定存到期結清，與查詢或頁面瀏覽完全脫鉤
type MaturitySweeper struct {
	core     *CoreUseCase
	interval time.Duration
}

func NewMaturitySweeper(core *CoreUseCase, interval time.Duration) *MaturitySweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &MaturitySweeper{
		core:     core,
		interval: interval,
	}
}

// Run 啟動後先掃描一次，之後每個 interval 掃描，直到 ctx 結束
//
// 儲存層錯誤只記錄，不在這裡重試；下一輪掃描自然會再處理。
func (s *MaturitySweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("Maturity sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *MaturitySweeper) sweepOnce(ctx context.Context) {
	if _, err := s.core.SweepMaturedDeposits(ctx); err != nil {
		log.Printf("Maturity sweep failed: %v", err)
	}
}
