package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
)

// DefaultStream 帳務事件的 Redis Stream 名稱
const DefaultStream = "ledger:events"

// defaultMaxLen Stream 保留的大約筆數
const defaultMaxLen = 100000

// Publisher 將已提交的帳務事件寫入 Redis Stream
// 下游 (對帳、通知) 自行以 consumer group 讀取。
type Publisher struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

func NewPublisher(client redis.UniversalClient, stream string) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &Publisher{
		client: client,
		stream: stream,
		maxLen: defaultMaxLen,
	}
}

// Publish 寫入一筆事件
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(newEventMessage(event))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":  event.Type,
			"event": data,
		},
	}
	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// eventMessage 事件在 Stream 上的 JSON 格式，金額以十進位字串表示
type eventMessage struct {
	Type        string               `json:"type"`
	Actor       string               `json:"actor"`
	OccurredAt  time.Time            `json:"occurred_at"`
	Transaction *transactionMessage  `json:"transaction,omitempty"`
	TimeDeposit *timeDepositMessage  `json:"time_deposit,omitempty"`
	Account     *accountStateMessage `json:"account,omitempty"`
}

type transactionMessage struct {
	ID              int64     `json:"id"`
	RefID           string    `json:"ref_id"`
	Type            string    `json:"type"`
	AccountNumber   string    `json:"account_number"`
	ReferenceNumber string    `json:"reference_number"`
	Amount          string    `json:"amount"`
	ActorID         int64     `json:"actor_id"`
	CreatedAt       time.Time `json:"created_at"`
}

type timeDepositMessage struct {
	ID             int64     `json:"id"`
	AccountNumber  string    `json:"account_number"`
	Principal      string    `json:"principal"`
	InterestRate   string    `json:"interest_rate"`
	DurationMonths int       `json:"duration_months"`
	MaturityDate   time.Time `json:"maturity_date"`
	Settled        bool      `json:"settled"`
}

type accountStateMessage struct {
	AccountNumber string `json:"account_number"`
	OwnerUserID   int64  `json:"owner_user_id"`
	Active        bool   `json:"active"`
}

func newEventMessage(e domain.Event) eventMessage {
	msg := eventMessage{
		Type:       e.Type,
		Actor:      e.Actor.String(),
		OccurredAt: e.OccurredAt.UTC(),
	}
	if t := e.Transaction; t != nil {
		msg.Transaction = &transactionMessage{
			ID:              t.ID,
			RefID:           t.RefID.String(),
			Type:            t.Type.String(),
			AccountNumber:   t.AccountNumber,
			ReferenceNumber: t.ReferenceNumber,
			Amount:          domain.FormatAmount(t.Amount),
			ActorID:         t.ActorID,
			CreatedAt:       t.CreatedAt.UTC(),
		}
	}
	if d := e.TimeDeposit; d != nil {
		msg.TimeDeposit = &timeDepositMessage{
			ID:             d.ID,
			AccountNumber:  d.AccountNumber,
			Principal:      domain.FormatAmount(d.PrincipalAmount),
			InterestRate:   d.InterestRate.String(),
			DurationMonths: d.DurationMonths,
			MaturityDate:   d.MaturityDate.UTC(),
			Settled:        d.IsSettled,
		}
	}
	if a := e.Account; a != nil {
		msg.Account = &accountStateMessage{
			AccountNumber: a.AccountNumber,
			OwnerUserID:   a.OwnerUserID,
			Active:        !a.IsDeleted,
		}
	}
	return msg
}

var _ usecase.Publisher = (*Publisher)(nil)
