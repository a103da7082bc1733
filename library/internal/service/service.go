package service

import (
	"context"
	"time"

	"github.com/Astemirdum/library-management/library/internal/events"
	"github.com/Astemirdum/library-management/library/internal/metrics"
	"github.com/Astemirdum/library-management/library/internal/model"
	libraryRepo "github.com/Astemirdum/library-management/library/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	log     *zap.Logger
	repo    libraryRepo.Repository
	events  events.Publisher
	metrics *metrics.Metrics

	now          func() time.Time
	dailyFine    decimal.Decimal
	loanPeriod   time.Duration
	passwordCost int
}

type Option func(s *Service)

// WithClock replaces the time source used for due dates and fines.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLoanPolicy sets the fine charged per overdue day and the default loan length.
func WithLoanPolicy(dailyFine decimal.Decimal, period time.Duration) Option {
	return func(s *Service) {
		if dailyFine.IsPositive() {
			s.dailyFine = dailyFine
		}
		if period > 0 {
			s.loanPeriod = period
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		s.events = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPasswordCost(cost int) Option {
	return func(s *Service) {
		s.passwordCost = cost
	}
}

func NewService(repo libraryRepo.Repository, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		log:          log.Named("service"),
		repo:         repo,
		events:       events.NewNopPublisher(),
		now:          time.Now,
		dailyFine:    model.DefaultDailyFine,
		loanPeriod:   model.DefaultLoanPeriod,
		passwordCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// publish reports a loan event after the change is committed. A failing
// broker is logged and never surfaces to the caller.
func (s *Service) publish(ctx context.Context, kind events.Kind, loan model.Loan) {
	if err := s.events.Publish(ctx, events.NewLoanEvent(kind, loan, s.now())); err != nil {
		s.log.Warn("publish loan event",
			zap.String("kind", string(kind)),
			zap.Int64("loan_id", loan.ID),
			zap.Error(err))
	}
}
