package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	grpc_adapter "github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	grpcpkg "github.com/JoeShih716/go-bank-ledger/pkg/grpc"
)

const (
	TotalCount  = 100000
	Concurrency = 500
	Target      = "localhost:50051"
)

// 壓測用的操作者 (櫃台人員)
var teller = domain.Actor{UserID: 1, Role: domain.RoleOperator}

// 用法: test_rpc_client <帳號A> <帳號B>
// 兩個帳戶需先透過 HTTP 管理 API 開立；test_rpc_client size 只計算單筆交易大小
func main() {
	if len(os.Args) == 2 && os.Args[1] == "size" {
		measureTransactionSize()
		return
	}
	if len(os.Args) != 3 {
		log.Fatalf("usage: %s <account-a> <account-b> | size", os.Args[0])
	}
	accountA, accountB := os.Args[1], os.Args[2]

	pool := grpcpkg.NewPool(grpcpkg.WithInterceptor(grpcpkg.UnaryClientTimeout(5 * time.Second)))
	defer pool.Close()
	conn, err := pool.GetConnection(Target)
	if err != nil {
		log.Fatalf("did not connect: %v", err)
	}
	c := grpc_adapter.NewLedgerClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()
	ctx = grpc_adapter.WithActor(ctx, teller)

	before := totalBalance(ctx, c, accountA, accountB)

	var wg sync.WaitGroup
	wg.Add(TotalCount)
	sem := make(chan struct{}, Concurrency)
	var succeeded, rejected, failed atomic.Int64
	amount := decimal.NewFromInt(1)

	startTime := time.Now()

	for i := 0; i < TotalCount; i++ {
		sem <- struct{}{}

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			// 交錯方向，刻意製造 A->B 與 B->A 同時鎖定
			src, dst := accountA, accountB
			if idx%2 == 1 {
				src, dst = dst, src
			}
			resp, err := c.Transfer(ctx, &grpc_adapter.TransferRequest{
				SourceAccount: src,
				DestAccount:   dst,
				Amount:        amount,
			})
			switch {
			case err != nil:
				failed.Add(1)
				if idx%10000 == 0 {
					log.Printf("Transfer %d failed: %v", idx, err)
				}
			case !resp.Success:
				rejected.Add(1)
			default:
				succeeded.Add(1)
			}
		}(i)
	}

	wg.Wait()

	elapsed := time.Since(startTime)
	fmt.Printf("Completed %d requests in %v\n", TotalCount, elapsed)
	fmt.Printf("TPS: %.2f\n", float64(TotalCount)/elapsed.Seconds())
	fmt.Printf("Succeeded: %d, Rejected: %d, Failed: %d\n", succeeded.Load(), rejected.Load(), failed.Load())

	// 轉帳不會改變兩帳戶總額
	after := totalBalance(ctx, c, accountA, accountB)
	fmt.Printf("Total balance before: %s, after: %s\n", before, after)
	if !before.Equal(after) {
		log.Fatalf("balance mismatch")
	}
}

func totalBalance(ctx context.Context, c *grpc_adapter.LedgerClient, accounts ...string) decimal.Decimal {
	total := decimal.Zero
	for _, number := range accounts {
		resp, err := c.Inquire(ctx, &grpc_adapter.AccountRequest{AccountNumber: number})
		if err != nil {
			log.Fatalf("Inquire %s failed: %v", number, err)
		}
		total = total.Add(resp.Balance)
	}
	return total
}

// measureTransactionSize 測試計算單筆交易大小 (WAL 中 ledger 紀錄的 JSON 大小)
func measureTransactionSize() {
	// 模擬一筆典型的轉帳
	tx := domain.NewTransaction(domain.TransactionTypeFundTransfer,
		"1234567890",       // 10 bytes string
		"0987654321",       // 10 bytes string
		1000000000000,      // int64 最小單位
		teller,             // actor id
		time.Now(),
	)
	tx.ID = 1234567890

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(tx); err != nil {
		panic(err)
	}

	fmt.Printf("Single Transaction JSON Size: %d bytes\n", buf.Len())
}
