package model

import (
	"time"

	"github.com/Astemirdum/library-management/library/internal/errs"
	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanStatusActive   LoanStatus = "active"
	LoanStatusReturned LoanStatus = "returned"
	LoanStatusOverdue  LoanStatus = "overdue"
)

const (
	DefaultLoanPeriod = 14 * 24 * time.Hour
	day               = 24 * time.Hour
)

var DefaultDailyFine = decimal.New(50, -2)

type Loan struct {
	ID         int64           `json:"id" db:"id"`
	UserID     int64           `json:"user_id" db:"user_id"`
	BookID     int64           `json:"book_id" db:"book_id"`
	BorrowedAt time.Time       `json:"borrowed_at" db:"borrowed_at"`
	DueDate    time.Time       `json:"due_date" db:"due_date"`
	ReturnedAt *time.Time      `json:"returned_at" db:"returned_at"`
	Status     LoanStatus      `json:"status" db:"status"`
	Notes      string          `json:"notes" db:"notes"`
	FineAmount decimal.Decimal `json:"fine_amount" db:"fine_amount"`
	FinePaid   bool            `json:"fine_paid" db:"fine_paid"`
}

// NewLoan opens a loan at borrowedAt. When dueDate is nil the loan is due
// period later; a non-positive period falls back to DefaultLoanPeriod.
func NewLoan(userID, bookID int64, borrowedAt time.Time, dueDate *time.Time, period time.Duration, notes string) Loan {
	if period <= 0 {
		period = DefaultLoanPeriod
	}
	due := borrowedAt.Add(period)
	if dueDate != nil {
		due = *dueDate
	}
	return Loan{
		UserID:     userID,
		BookID:     bookID,
		BorrowedAt: borrowedAt,
		DueDate:    due,
		Status:     LoanStatusActive,
		Notes:      notes,
		FineAmount: decimal.Zero,
	}
}

func (l Loan) IsOpen() bool {
	return l.ReturnedAt == nil
}

func (l Loan) IsOverdue(now time.Time) bool {
	return l.IsOpen() && now.After(l.DueDate)
}

// DaysOverdue counts whole days past the due date. A loan a few hours late is
// overdue with zero days.
func (l Loan) DaysOverdue(now time.Time) int {
	if !l.IsOverdue(now) {
		return 0
	}
	return int(now.Sub(l.DueDate) / day)
}

func Fine(days int, dailyRate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(days)).Mul(dailyRate).Round(2)
}

// CalculateFine overwrites the fine with days overdue times dailyRate and marks
// the loan overdue. It does nothing and reports false when the loan is not
// overdue at now.
func (l *Loan) CalculateFine(now time.Time, dailyRate decimal.Decimal) bool {
	if !l.IsOverdue(now) {
		return false
	}
	l.FineAmount = Fine(l.DaysOverdue(now), dailyRate)
	l.Status = LoanStatusOverdue
	return true
}

// Return closes the loan at now, charging a fine when it comes back late.
func (l *Loan) Return(now time.Time, dailyRate decimal.Decimal) error {
	if !l.IsOpen() {
		return errs.ErrAlreadyReturned
	}
	if !l.CalculateFine(now, dailyRate) {
		l.Status = LoanStatusReturned
	}
	returnedAt := now
	l.ReturnedAt = &returnedAt
	return nil
}

type LoanDetail struct {
	Loan        `json:",inline"`
	IsOverdue   bool `json:"is_overdue"`
	DaysOverdue int  `json:"days_overdue"`
}

func NewLoanDetail(l Loan, now time.Time) LoanDetail {
	return LoanDetail{
		Loan:        l,
		IsOverdue:   l.IsOverdue(now),
		DaysOverdue: l.DaysOverdue(now),
	}
}

type ListLoans struct {
	Paging `json:",inline"`
	Items  []LoanDetail `json:"items"`
}

type LoanFilter struct {
	UserID *int64
	BookID *int64
	Status LoanStatus
	Paging Paging
}

type BorrowRequest struct {
	BookID  int64      `json:"book_id" validate:"required,min=1"`
	DueDate *time.Time `json:"due_date"`
	Notes   string     `json:"notes"`
}

type ReturnRequest struct {
	Notes string `json:"notes"`
}

type UpdateLoanRequest struct {
	DueDate  *time.Time `json:"due_date"`
	Notes    *string    `json:"notes"`
	FinePaid *bool      `json:"fine_paid"`
}

type ReturnResult struct {
	Loan    LoanDetail      `json:"loan"`
	Message string          `json:"message"`
	Fine    decimal.Decimal `json:"fine"`
}

type MyLoans struct {
	ActiveLoans   []LoanDetail `json:"active_loans"`
	ReturnedLoans []LoanDetail `json:"returned_loans"`
	TotalLoans    int          `json:"total_loans"`
	ActiveCount   int          `json:"active_count"`
	ReturnedCount int          `json:"returned_count"`
}

// LoanStats aggregates loan counts and fine sums, either for one account or
// for the whole library.
type LoanStats struct {
	TotalLoans    int             `json:"total_loans" db:"total_loans"`
	ActiveLoans   int             `json:"active_loans" db:"active_loans"`
	ReturnedLoans int             `json:"returned_loans" db:"returned_loans"`
	OverdueLoans  int             `json:"overdue_loans" db:"overdue_loans"`
	TotalFines    decimal.Decimal `json:"total_fines" db:"total_fines"`
	UnpaidFines   decimal.Decimal `json:"unpaid_fines" db:"unpaid_fines"`
}

type FineSweepResult struct {
	Message      string `json:"message"`
	UpdatedCount int    `json:"updated_count"`
}
