package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/Astemirdum/library-management/pkg/circuit_breaker"
	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Kind string

const (
	LoanBorrowed        Kind = "loan.borrowed"
	LoanReturned        Kind = "loan.returned"
	LoanFinesCalculated Kind = "loan.fines_calculated"
)

// LoanEvent is the message written to the loans topic, keyed by loan id.
type LoanEvent struct {
	ID         string           `json:"id"`
	Kind       Kind             `json:"kind"`
	OccurredAt time.Time        `json:"occurred_at"`
	LoanID     int64            `json:"loan_id"`
	UserID     int64            `json:"user_id"`
	BookID     int64            `json:"book_id"`
	Status     model.LoanStatus `json:"status"`
	DueDate    time.Time        `json:"due_date"`
	ReturnedAt *time.Time       `json:"returned_at,omitempty"`
	FineAmount decimal.Decimal  `json:"fine_amount"`
}

func NewLoanEvent(kind Kind, loan model.Loan, at time.Time) LoanEvent {
	return LoanEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		OccurredAt: at,
		LoanID:     loan.ID,
		UserID:     loan.UserID,
		BookID:     loan.BookID,
		Status:     loan.Status,
		DueDate:    loan.DueDate,
		ReturnedAt: loan.ReturnedAt,
		FineAmount: loan.FineAmount,
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev LoanEvent) error
}

type kafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	cb       circuit_breaker.CircuitBreaker
	log      *zap.Logger
}

var cbConfig = circuit_breaker.Config{
	RecordLength:     10,
	Timeout:          30 * time.Second,
	Percentile:       0.5,
	RecoveryRequests: 2,
}

// NewKafkaPublisher sends events synchronously. Sends go through a circuit
// breaker so an unreachable broker fails fast instead of stalling requests.
func NewKafkaPublisher(producer sarama.SyncProducer, topic string, log *zap.Logger) Publisher {
	return &kafkaPublisher{
		producer: producer,
		topic:    topic,
		cb:       circuit_breaker.New(cbConfig),
		log:      log.Named("events"),
	}
}

func (p *kafkaPublisher) Publish(_ context.Context, ev LoanEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal loan event")
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(ev.LoanID, 10)),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("kind"), Value: []byte(ev.Kind)},
		},
	}
	return p.cb.Call(func() error {
		partition, offset, err := p.producer.SendMessage(msg)
		if err != nil {
			return errors.Wrap(err, "send loan event")
		}
		p.log.Debug("published",
			zap.String("kind", string(ev.Kind)),
			zap.Int64("loan_id", ev.LoanID),
			zap.Int32("partition", partition),
			zap.Int64("offset", offset))
		return nil
	})
}

type nopPublisher struct{}

func NewNopPublisher() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, LoanEvent) error { return nil }
