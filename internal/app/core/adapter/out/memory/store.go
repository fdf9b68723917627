package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/wal"
)

// commitRecord 一個交易單位提交後的結果 (after-image)
// 先寫入 WAL 成功後才套用到記憶體，重放時整筆套用，不會出現只扣款未入帳的狀態。
type commitRecord struct {
	Accounts []domain.Account     `json:"accounts,omitempty"`
	Entries  []domain.Transaction `json:"entries,omitempty"`
	Deposits []domain.TimeDeposit `json:"deposits,omitempty"`
}

func (r *commitRecord) empty() bool {
	return len(r.Accounts) == 0 && len(r.Entries) == 0 && len(r.Deposits) == 0
}

// Store 是一個記憶體帳本，以每個帳戶一把鎖序列化同帳戶的讀改寫
//
// 結構:
//
//	accounts/deposits/entries: 已提交的資料，由 mu 保護
//	locks: 帳號 -> 容量 1 的 channel，作為可被 ctx 取消的帳戶鎖
//	wal: Write-Ahead Log 實例，nil 代表不持久化
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
	deposits map[int64]*domain.TimeDeposit
	entries  []domain.Transaction

	nextAccountID atomic.Int64
	nextEntryID   atomic.Int64
	nextDepositID atomic.Int64

	locksMu sync.Mutex
	locks   map[string]chan struct{}

	wal *wal.WAL
}

// NewStore 建立一個新的記憶體帳本，並從 WAL 恢復狀態
//
// 參數:
//
//	w: Write-Ahead Log 實例，可為 nil
//
// 回傳:
//
//	*Store: Store 實例
//	error: WAL 恢復失敗
func NewStore(w *wal.WAL) (*Store, error) {
	s := &Store{
		accounts: make(map[string]*domain.Account),
		deposits: make(map[int64]*domain.TimeDeposit),
		locks:    make(map[string]chan struct{}),
		wal:      w,
	}
	if w != nil {
		if err := s.recoverFromWAL(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// recoverFromWAL 依序重放所有已提交的 commitRecord
// 只有 NewStore 呼叫，無需 Lock (單執行緒)
func (s *Store) recoverFromWAL() error {
	count := 0
	err := s.wal.ReadAll(func(jsonRaw []byte) error {
		var rec commitRecord
		if err := json.Unmarshal(jsonRaw, &rec); err != nil {
			return err
		}
		s.apply(&rec)
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("recover from wal: %w", err)
	}
	log.Printf("Recovered %d commits from WAL", count)
	return nil
}

// Atomic 依遞增順序取得帳戶鎖後執行 fn，成功才寫入 WAL 並套用
func (s *Store) Atomic(ctx context.Context, accountNumbers []string, fn func(tx usecase.StoreTx) error) error {
	ordered := domain.LockOrder(accountNumbers...)
	unlock, err := s.lock(ctx, ordered)
	if err != nil {
		return err
	}
	defer unlock()

	t := newTx(s, ordered)
	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	rec := t.record()
	if rec.empty() {
		// 唯讀的交易單位不寫 WAL
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(rec)
}

// lock 依序取得帳戶鎖，等待期間 ctx 結束則釋放已取得的鎖並回傳錯誤
func (s *Store) lock(ctx context.Context, ordered []string) (func(), error) {
	acquired := make([]chan struct{}, 0, len(ordered))
	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			<-acquired[i]
		}
	}
	for _, number := range ordered {
		l := s.accountLock(number)
		select {
		case l <- struct{}{}:
			acquired = append(acquired, l)
		case <-ctx.Done():
			release()
			return nil, fmt.Errorf("%w: waiting for account %s: %v", domain.ErrStorageUnavailable, number, ctx.Err())
		}
	}
	return release, nil
}

func (s *Store) accountLock(accountNumber string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[accountNumber]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[accountNumber] = l
	}
	return l
}

// commitLocked 寫入 WAL 後套用，呼叫端必須持有 mu
func (s *Store) commitLocked(rec *commitRecord) error {
	if s.wal != nil {
		if err := s.wal.Write(rec); err != nil {
			return fmt.Errorf("%w: wal write: %v", domain.ErrStorageUnavailable, err)
		}
	}
	s.apply(rec)
	return nil
}

func (s *Store) apply(rec *commitRecord) {
	for i := range rec.Accounts {
		a := rec.Accounts[i]
		s.accounts[a.AccountNumber] = &a
		if a.ID > s.nextAccountID.Load() {
			s.nextAccountID.Store(a.ID)
		}
	}
	for _, e := range rec.Entries {
		s.entries = append(s.entries, e)
		if e.ID > s.nextEntryID.Load() {
			s.nextEntryID.Store(e.ID)
		}
	}
	for i := range rec.Deposits {
		d := rec.Deposits[i]
		s.deposits[d.ID] = &d
		if d.ID > s.nextDepositID.Load() {
			s.nextDepositID.Store(d.ID)
		}
	}
}

// GetAccount 讀取帳戶 (包含已停用)
func (s *Store) GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountNumber]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

// SetAccountDeleted 停用或啟用帳戶，與資金操作共用同一把帳戶鎖
func (s *Store) SetAccountDeleted(ctx context.Context, accountNumber string, deleted bool, at time.Time) error {
	return s.updateAccount(ctx, accountNumber, at, func(a *domain.Account) {
		a.IsDeleted = deleted
	})
}

// UpdatePINHash 更新 PIN 雜湊
func (s *Store) UpdatePINHash(ctx context.Context, accountNumber string, pinHash string, at time.Time) error {
	return s.updateAccount(ctx, accountNumber, at, func(a *domain.Account) {
		a.PINHash = pinHash
	})
}

func (s *Store) updateAccount(ctx context.Context, accountNumber string, at time.Time, mutate func(*domain.Account)) error {
	unlock, err := s.lock(ctx, []string{accountNumber})
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountNumber]
	if !ok {
		return domain.ErrAccountNotFound
	}
	cp := *a
	mutate(&cp)
	cp.UpdatedAt = at
	return s.commitLocked(&commitRecord{Accounts: []domain.Account{cp}})
}

// ListMaturedDeposits 列出已到期未結清的定存，依到期日排序
func (s *Store) ListMaturedDeposits(ctx context.Context, now time.Time) ([]domain.TimeDeposit, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	s.mu.RLock()
	out := make([]domain.TimeDeposit, 0)
	for _, d := range s.deposits {
		if d.IsMature(now) {
			out = append(out, *d)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].MaturityDate.Equal(out[j].MaturityDate) {
			return out[i].MaturityDate.Before(out[j].MaturityDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ListByAccount 列出帳戶相關紀錄 (來源或對方)，由新到舊
func (s *Store) ListByAccount(ctx context.Context, accountNumber string) ([]domain.Transaction, error) {
	return s.listEntries(ctx, func(e *domain.Transaction) bool {
		return e.Involves(accountNumber)
	})
}

// ListAll 列出所有紀錄，由新到舊
func (s *Store) ListAll(ctx context.Context) ([]domain.Transaction, error) {
	return s.listEntries(ctx, func(*domain.Transaction) bool { return true })
}

func (s *Store) listEntries(ctx context.Context, match func(*domain.Transaction) bool) ([]domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	s.mu.RLock()
	out := make([]domain.Transaction, 0)
	for i := range s.entries {
		if match(&s.entries[i]) {
			out = append(out, s.entries[i])
		}
	}
	s.mu.RUnlock()
	domain.SortNewestFirst(out)
	return out, nil
}

var _ usecase.Store = (*Store)(nil)
