package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/mysql"
)

// Store 以 MySQL 實作帳務儲存層
// 同帳戶的讀改寫以 SELECT ... FOR UPDATE 序列化，多帳戶依帳號遞增順序鎖定。
type Store struct {
	client *mysql.Client
}

func NewStore(client *mysql.Client) *Store {
	return &Store{
		client: client,
	}
}

// Migrate 建立或更新資料表
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db(ctx).AutoMigrate(&sqlAccount{}, &sqlTransaction{}, &sqlTimeDeposit{})
	if err != nil {
		return storageErr(err)
	}
	return nil
}

func (s *Store) db(ctx context.Context) *gorm.DB {
	return s.client.DB().WithContext(ctx)
}

// Atomic 在單一 DB Transaction 內鎖定帳戶後執行 fn
//
// fn 的錯誤原樣回傳 (已回滾)，其餘資料庫錯誤包裝為 domain.ErrStorageUnavailable。
func (s *Store) Atomic(ctx context.Context, accountNumbers []string, fn func(tx usecase.StoreTx) error) error {
	ordered := domain.LockOrder(accountNumbers...)
	var fnErr error
	err := s.db(ctx).Transaction(func(gtx *gorm.DB) error {
		// 悲觀鎖，依帳號排序避免死鎖
		var rows []sqlAccount
		if err := gtx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_number IN ?", ordered).
			Order("account_number").
			Find(&rows).Error; err != nil {
			return storageErr(err)
		}

		t := newTx(gtx, ordered, rows)
		if fnErr = fn(t); fnErr != nil {
			return fnErr
		}
		return t.flush()
	})
	if fnErr != nil {
		return fnErr
	}
	return storageErr(err)
}

// GetAccount 讀取帳戶 (包含已停用)
func (s *Store) GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	var row sqlAccount
	err := s.db(ctx).Where("account_number = ?", accountNumber).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return toDomainAccount(&row), nil
}

// SetAccountDeleted 停用或啟用帳戶
func (s *Store) SetAccountDeleted(ctx context.Context, accountNumber string, deleted bool, at time.Time) error {
	return s.updateAccount(ctx, accountNumber, at, map[string]any{"is_deleted": deleted})
}

// UpdatePINHash 更新 PIN 雜湊
func (s *Store) UpdatePINHash(ctx context.Context, accountNumber string, pinHash string, at time.Time) error {
	return s.updateAccount(ctx, accountNumber, at, map[string]any{"pin_hash": pinHash})
}

// updateAccount 鎖定帳戶列後更新欄位，與資金操作互斥
func (s *Store) updateAccount(ctx context.Context, accountNumber string, at time.Time, columns map[string]any) error {
	err := s.db(ctx).Transaction(func(gtx *gorm.DB) error {
		var row sqlAccount
		err := gtx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_number = ?", accountNumber).
			First(&row).Error
		if err != nil {
			return err
		}
		columns["updated_at"] = at.UTC()
		return gtx.Model(&sqlAccount{}).Where("id = ?", row.ID).Updates(columns).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrAccountNotFound
	}
	return storageErr(err)
}

// ListMaturedDeposits 列出已到期未結清的定存，依到期日排序
func (s *Store) ListMaturedDeposits(ctx context.Context, now time.Time) ([]domain.TimeDeposit, error) {
	var rows []sqlTimeDeposit
	err := s.db(ctx).
		Where("is_settled = ? AND maturity_date <= ?", false, now.UTC()).
		Order("maturity_date, id").
		Find(&rows).Error
	if err != nil {
		return nil, storageErr(err)
	}
	out := make([]domain.TimeDeposit, 0, len(rows))
	for i := range rows {
		out = append(out, *toDomainTimeDeposit(&rows[i]))
	}
	return out, nil
}

// ListByAccount 列出帳戶相關紀錄 (來源或對方)，由新到舊
func (s *Store) ListByAccount(ctx context.Context, accountNumber string) ([]domain.Transaction, error) {
	return s.listEntries(s.db(ctx).Where("account_number = ? OR reference_number = ?", accountNumber, accountNumber))
}

// ListAll 列出所有紀錄，由新到舊
func (s *Store) ListAll(ctx context.Context) ([]domain.Transaction, error) {
	return s.listEntries(s.db(ctx))
}

func (s *Store) listEntries(query *gorm.DB) ([]domain.Transaction, error) {
	var rows []sqlTransaction
	if err := query.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, storageErr(err)
	}
	out := make([]domain.Transaction, 0, len(rows))
	for i := range rows {
		t, err := toDomainTransaction(&rows[i])
		if err != nil {
			return nil, storageErr(fmt.Errorf("transaction %d: %w", rows[i].ID, err))
		}
		out = append(out, t)
	}
	return out, nil
}

func findOpenTimeDeposit(db *gorm.DB, accountNumber string) (*domain.TimeDeposit, error) {
	var row sqlTimeDeposit
	err := db.Where("account_number = ? AND is_settled = ?", accountNumber, false).
		Order("id").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrTimeDepositNotFound
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return toDomainTimeDeposit(&row), nil
}

// storageErr 將資料庫錯誤包裝成 domain.ErrStorageUnavailable
func storageErr(err error) error {
	if err == nil || errors.Is(err, domain.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}

var _ usecase.Store = (*Store)(nil)
