package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Astemirdum/library-management/library/internal/errs"
	"github.com/Astemirdum/library-management/library/internal/events"
	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/Astemirdum/library-management/pkg/auth"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.LoanEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.LoanEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) kinds() []events.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Kind, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fixture struct {
	svc   *Service
	repo  *memRepo
	clock *clock
	pub   *recordingPublisher
	admin auth.Identity
}

var start = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := newMemRepo()
	c := &clock{now: start}
	pub := &recordingPublisher{}
	svc := NewService(repo, zap.NewNop(),
		WithClock(c.Now),
		WithPublisher(pub),
		WithPasswordCost(bcrypt.MinCost),
	)
	f := &fixture{svc: svc, repo: repo, clock: c, pub: pub}
	f.admin = f.identity(t, "admin", model.RoleAdmin)
	return f
}

func (f *fixture) identity(t *testing.T, username string, role model.Role) auth.Identity {
	t.Helper()
	acc, err := f.repo.CreateAccount(context.Background(), model.Account{
		Username: username,
		Email:    username + "@library.test",
		Role:     role,
	})
	require.NoError(t, err)
	return auth.Identity{AccountID: acc.ID, Username: acc.Username, Role: string(acc.Role)}
}

func (f *fixture) book(t *testing.T, copies int) model.Book {
	t.Helper()
	b, err := f.svc.CreateBook(context.Background(), f.admin, model.CreateBookRequest{
		Title:       "The Go Programming Language",
		Author:      "Donovan",
		ISBN:        "978-0-13-419044-0",
		PageCount:   380,
		TotalCopies: &copies,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) available(t *testing.T, id int64) int {
	t.Helper()
	b, err := f.repo.GetBook(context.Background(), id)
	require.NoError(t, err)
	return b.AvailableCopies
}

func TestService_Borrow_LastCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	book := f.book(t, 3)
	require.Equal(t, 3, book.AvailableCopies)

	for i, name := range []string{"ann", "bob", "cid"} {
		who := f.identity(t, name, model.RoleUser)
		loan, err := f.svc.Borrow(ctx, who, model.BorrowRequest{BookID: book.ID})
		require.NoError(t, err)
		require.Equal(t, model.LoanStatusActive, loan.Status)
		require.Equal(t, start.Add(model.DefaultLoanPeriod), loan.DueDate)
		require.Equal(t, 2-i, f.available(t, book.ID))
	}

	late := f.identity(t, "dan", model.RoleUser)
	_, err := f.svc.Borrow(ctx, late, model.BorrowRequest{BookID: book.ID})
	require.ErrorIs(t, err, errs.ErrBookUnavailable)
	require.Equal(t, 0, f.available(t, book.ID))
	require.Equal(t, []events.Kind{events.LoanBorrowed, events.LoanBorrowed, events.LoanBorrowed}, f.pub.kinds())
}

func TestService_Borrow_SameBookTwice(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	book := f.book(t, 2)
	who := f.identity(t, "ann", model.RoleUser)

	_, err := f.svc.Borrow(ctx, who, model.BorrowRequest{BookID: book.ID})
	require.NoError(t, err)
	_, err = f.svc.Borrow(ctx, who, model.BorrowRequest{BookID: book.ID})
	require.ErrorIs(t, err, errs.ErrAlreadyBorrowed)
	require.Equal(t, 1, f.available(t, book.ID))
}

func TestService_Borrow_Rejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	book := f.book(t, 1)
	who := f.identity(t, "ann", model.RoleUser)

	_, err := f.svc.Borrow(ctx, auth.Identity{}, model.BorrowRequest{BookID: book.ID})
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = f.svc.Borrow(ctx, who, model.BorrowRequest{BookID: 999})
	vErr, ok := errs.IsValidation(err)
	require.True(t, ok)
	require.Contains(t, vErr.Fields, "book_id")

	past := start.Add(-time.Hour)
	_, err = f.svc.Borrow(ctx, who, model.BorrowRequest{BookID: book.ID, DueDate: &past})
	_, ok = errs.IsValidation(err)
	require.True(t, ok)
	require.Equal(t, 1, f.available(t, book.ID))
}

func TestService_Return(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		after      time.Duration
		wantStatus model.LoanStatus
		wantFine   string
	}{
		{name: "early", after: 3 * 24 * time.Hour, wantStatus: model.LoanStatusReturned, wantFine: "0"},
		{name: "on due date", after: model.DefaultLoanPeriod, wantStatus: model.LoanStatusReturned, wantFine: "0"},
		{name: "five days late", after: model.DefaultLoanPeriod + 5*24*time.Hour, wantStatus: model.LoanStatusOverdue, wantFine: "2.5"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			f := newFixture(t)
			book := f.book(t, 1)
			who := f.identity(t, "ann", model.RoleUser)
			loan, err := f.svc.Borrow(ctx, who, model.BorrowRequest{BookID: book.ID})
			require.NoError(t, err)
			require.Equal(t, 0, f.available(t, book.ID))

			f.clock.Advance(tt.after)
			res, err := f.svc.Return(ctx, who, loan.ID, model.ReturnRequest{Notes: "slightly worn"})
			require.NoError(t, err)
			require.Equal(t, tt.wantStatus, res.Loan.Status)
			require.True(t, decimal.RequireFromString(tt.wantFine).Equal(res.Fine), "fine %s", res.Fine)
			require.NotNil(t, res.Loan.ReturnedAt)
			require.False(t, res.Loan.IsOverdue)
			require.Equal(t, "slightly worn", res.Loan.Notes)
			require.Equal(t, 1, f.available(t, book.ID))

			_, err = f.svc.Return(ctx, who, loan.ID, model.ReturnRequest{})
			require.ErrorIs(t, err, errs.ErrAlreadyReturned)
			require.Equal(t, 1, f.available(t, book.ID))
		})
	}
}

func TestService_Return_Access(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	book := f.book(t, 1)
	owner := f.identity(t, "ann", model.RoleUser)
	other := f.identity(t, "bob", model.RoleUser)
	loan, err := f.svc.Borrow(ctx, owner, model.BorrowRequest{BookID: book.ID})
	require.NoError(t, err)

	_, err = f.svc.Return(ctx, other, loan.ID, model.ReturnRequest{})
	require.ErrorIs(t, err, errs.ErrForbidden)
	_, err = f.svc.Return(ctx, other, 12345, model.ReturnRequest{})
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = f.svc.Return(ctx, f.admin, loan.ID, model.ReturnRequest{})
	require.NoError(t, err)
}

func TestService_GetLoan_HiddenFromOthers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	book := f.book(t, 1)
	owner := f.identity(t, "ann", model.RoleUser)
	other := f.identity(t, "bob", model.RoleUser)
	loan, err := f.svc.Borrow(ctx, owner, model.BorrowRequest{BookID: book.ID})
	require.NoError(t, err)

	_, err = f.svc.GetLoan(ctx, other, loan.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	got, err := f.svc.GetLoan(ctx, owner, loan.ID)
	require.NoError(t, err)
	require.Equal(t, loan.ID, got.ID)

	f.clock.Advance(model.DefaultLoanPeriod + 50*time.Hour)
	got, err = f.svc.GetLoan(ctx, f.admin, loan.ID)
	require.NoError(t, err)
	require.True(t, got.IsOverdue)
	require.Equal(t, 2, got.DaysOverdue)
}

func TestService_CalculateOverdueFines(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	book := f.book(t, 4)

	var loans []model.LoanDetail
	for _, name := range []string{"ann", "bob", "cid", "dan"} {
		who := f.identity(t, name, model.RoleUser)
		due := start.Add(24 * time.Hour)
		if name == "cid" || name == "dan" {
			due = start.Add(30 * 24 * time.Hour)
		}
		loan, err := f.svc.Borrow(ctx, who, model.BorrowRequest{BookID: book.ID, DueDate: &due})
		require.NoError(t, err)
		loans = append(loans, loan)
	}
	// a returned loan is never swept
	_, err := f.svc.Return(ctx, f.admin, loans[3].ID, model.ReturnRequest{})
	require.NoError(t, err)

	f.clock.Advance(5 * 24 * time.Hour)

	_, err = f.svc.CalculateOverdueFines(ctx, auth.Identity{AccountID: loans[0].UserID, Username: "ann", Role: "user"})
	require.ErrorIs(t, err, errs.ErrForbidden)

	res, err := f.svc.CalculateOverdueFines(ctx, f.admin)
	require.NoError(t, err)
	require.Equal(t, 2, res.UpdatedCount)
	require.Equal(t, "Calculated fines for 2 overdue loans", res.Message)

	for i, l := range loans {
		stored, err := f.repo.GetLoan(ctx, l.ID)
		require.NoError(t, err)
		if i < 2 {
			assert.Equal(t, "2.00", stored.FineAmount.StringFixed(2))
			assert.Equal(t, model.LoanStatusOverdue, stored.Status)
		} else {
			assert.True(t, stored.FineAmount.IsZero())
		}
	}

	again, err := f.svc.CalculateOverdueFines(ctx, f.admin)
	require.NoError(t, err)
	require.Equal(t, 2, again.UpdatedCount)
	stored, err := f.repo.GetLoan(ctx, loans[0].ID)
	require.NoError(t, err)
	require.Equal(t, "2.00", stored.FineAmount.StringFixed(2))
}

func TestService_CalculateFine_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	book := f.book(t, 1)
	who := f.identity(t, "ann", model.RoleUser)
	loan, err := f.svc.Borrow(ctx, who, model.BorrowRequest{BookID: book.ID})
	require.NoError(t, err)

	got, err := f.svc.CalculateFine(ctx, f.admin, loan.ID)
	require.NoError(t, err)
	require.True(t, got.FineAmount.IsZero())
	require.Equal(t, model.LoanStatusActive, got.Status)

	f.clock.Advance(model.DefaultLoanPeriod + 3*24*time.Hour)
	first, err := f.svc.CalculateFine(ctx, f.admin, loan.ID)
	require.NoError(t, err)
	second, err := f.svc.CalculateFine(ctx, f.admin, loan.ID)
	require.NoError(t, err)
	require.Equal(t, "1.50", first.FineAmount.StringFixed(2))
	require.True(t, first.FineAmount.Equal(second.FineAmount))
	require.Equal(t, model.LoanStatusOverdue, second.Status)
}

func TestService_DeleteLoan_RestoresCopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	book := f.book(t, 1)
	who := f.identity(t, "ann", model.RoleUser)
	loan, err := f.svc.Borrow(ctx, who, model.BorrowRequest{BookID: book.ID})
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.DeleteLoan(ctx, who, loan.ID), errs.ErrForbidden)
	require.NoError(t, f.svc.DeleteLoan(ctx, f.admin, loan.ID))
	require.Equal(t, 1, f.available(t, book.ID))
	require.ErrorIs(t, f.svc.DeleteLoan(ctx, f.admin, loan.ID), errs.ErrNotFound)
}

func TestService_MyLoansAndStats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	first := f.book(t, 1)
	second, err := f.svc.CreateBook(ctx, f.admin, model.CreateBookRequest{
		Title: "Concurrency in Go", Author: "Cox-Buday", ISBN: "1491941197", PageCount: 238,
	})
	require.NoError(t, err)
	who := f.identity(t, "ann", model.RoleUser)

	l1, err := f.svc.Borrow(ctx, who, model.BorrowRequest{BookID: first.ID})
	require.NoError(t, err)
	_, err = f.svc.Borrow(ctx, who, model.BorrowRequest{BookID: second.ID})
	require.NoError(t, err)
	f.clock.Advance(model.DefaultLoanPeriod + 4*24*time.Hour)
	_, err = f.svc.Return(ctx, who, l1.ID, model.ReturnRequest{})
	require.NoError(t, err)

	mine, err := f.svc.MyLoans(ctx, who)
	require.NoError(t, err)
	require.Equal(t, 2, mine.TotalLoans)
	require.Equal(t, 1, mine.ActiveCount)
	require.Equal(t, 1, mine.ReturnedCount)
	require.True(t, mine.ActiveLoans[0].IsOverdue)

	stats, err := f.svc.AccountStats(ctx, who)
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalLoans)
	require.Equal(t, 1, stats.ActiveLoans)
	require.Equal(t, 1, stats.OverdueLoans)
	require.Equal(t, "2.00", stats.TotalFines.StringFixed(2))
	require.Equal(t, "2.00", stats.UnpaidFines.StringFixed(2))

	_, err = f.svc.LoanStats(ctx, who)
	require.ErrorIs(t, err, errs.ErrForbidden)

	paid := true
	_, err = f.svc.UpdateLoan(ctx, f.admin, l1.ID, model.UpdateLoanRequest{FinePaid: &paid})
	require.NoError(t, err)
	global, err := f.svc.LoanStats(ctx, f.admin)
	require.NoError(t, err)
	require.Equal(t, "2.00", global.TotalFines.StringFixed(2))
	require.True(t, global.UnpaidFines.IsZero())
}

func TestService_ListLoans_ScopedToCaller(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	book := f.book(t, 2)
	ann := f.identity(t, "ann", model.RoleUser)
	bob := f.identity(t, "bob", model.RoleUser)
	for _, who := range []auth.Identity{ann, bob} {
		_, err := f.svc.Borrow(ctx, who, model.BorrowRequest{BookID: book.ID})
		require.NoError(t, err)
	}

	own, err := f.svc.ListLoans(ctx, ann, model.LoanFilter{UserID: &bob.AccountID})
	require.NoError(t, err)
	require.Len(t, own.Items, 1)
	require.Equal(t, ann.AccountID, own.Items[0].UserID)

	all, err := f.svc.ListLoans(ctx, f.admin, model.LoanFilter{})
	require.NoError(t, err)
	require.Equal(t, 2, all.TotalElements)
}

func TestService_Books(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	user := f.identity(t, "ann", model.RoleUser)

	_, err := f.svc.CreateBook(ctx, user, model.CreateBookRequest{Title: "x", Author: "y", ISBN: "1491941197", PageCount: 1})
	require.ErrorIs(t, err, errs.ErrForbidden)
	_, err = f.svc.CreateBook(ctx, auth.Identity{}, model.CreateBookRequest{})
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	_, err = f.svc.CreateBook(ctx, f.admin, model.CreateBookRequest{Title: "x", Author: "y", ISBN: "12-34", PageCount: 1})
	vErr, ok := errs.IsValidation(err)
	require.True(t, ok)
	require.Equal(t, "ISBN must be 10 or 13 characters long", vErr.Fields["isbn"])

	book := f.book(t, 3)
	require.Equal(t, "9780134190440", book.ISBN)
	_, err = f.svc.Borrow(ctx, user, model.BorrowRequest{BookID: book.ID})
	require.NoError(t, err)

	total := 5
	updated, err := f.svc.UpdateBook(ctx, f.admin, book.ID, model.UpdateBookRequest{TotalCopies: &total})
	require.NoError(t, err)
	require.Equal(t, 5, updated.TotalCopies)
	require.Equal(t, 4, updated.AvailableCopies)

	total = 0
	_, err = f.svc.UpdateBook(ctx, f.admin, book.ID, model.UpdateBookRequest{TotalCopies: &total})
	_, ok = errs.IsValidation(err)
	require.True(t, ok)

	detail, err := f.svc.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, 1, detail.ActiveLoansCount)
	require.Equal(t, 1, detail.BorrowedCopies)
	require.True(t, detail.IsAvailable)

	require.ErrorIs(t, f.svc.DeleteBook(ctx, user, book.ID), errs.ErrForbidden)
	require.NoError(t, f.svc.DeleteBook(ctx, f.admin, book.ID))
	_, err = f.svc.GetBook(ctx, book.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestService_Register(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.svc.Register(ctx, model.RegisterRequest{
		Username: "ann", Email: "ann@example.com", Password: "s3cret-pass", PasswordConfirm: "s3cret-pass",
	})
	require.NoError(t, err)
	require.Equal(t, model.RoleUser, first.Role)
	require.NotEqual(t, "s3cret-pass", first.PasswordHash)

	_, err = f.svc.Register(ctx, model.RegisterRequest{
		Username: "ann2", Email: "ann@example.com", Password: "s3cret-pass", PasswordConfirm: "s3cret-pass",
	})
	vErr, ok := errs.IsValidation(err)
	require.True(t, ok)
	require.Contains(t, vErr.Fields, "email")

	_, err = f.svc.Register(ctx, model.RegisterRequest{
		Username: "bob", Email: "bob@example.com", Password: "s3cret-pass", PasswordConfirm: "other-pass",
	})
	vErr, ok = errs.IsValidation(err)
	require.True(t, ok)
	require.Contains(t, vErr.Fields, "password")

	stored, err := f.repo.GetAccountByUsername(ctx, "ann")
	require.NoError(t, err)
	require.Equal(t, first.ID, stored.ID)
}

func TestService_Credentials(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	acc, err := f.svc.Register(ctx, model.RegisterRequest{
		Username: "ann", Email: "ann@example.com", Password: "first-pass", PasswordConfirm: "first-pass",
	})
	require.NoError(t, err)
	who := auth.Identity{AccountID: acc.ID, Username: acc.Username, Role: string(acc.Role)}

	_, err = f.svc.Authenticate(ctx, model.LoginRequest{Username: "ann", Password: "wrong"})
	require.ErrorIs(t, err, errs.ErrInvalidCredentials)
	_, err = f.svc.Authenticate(ctx, model.LoginRequest{Username: "nobody", Password: "first-pass"})
	require.ErrorIs(t, err, errs.ErrInvalidCredentials)

	err = f.svc.ChangePassword(ctx, who, model.ChangePasswordRequest{
		OldPassword: "wrong", NewPassword: "second-pass", NewPasswordConfirm: "second-pass",
	})
	_, ok := errs.IsValidation(err)
	require.True(t, ok)

	require.NoError(t, f.svc.ChangePassword(ctx, who, model.ChangePasswordRequest{
		OldPassword: "first-pass", NewPassword: "second-pass", NewPasswordConfirm: "second-pass",
	}))
	_, err = f.svc.Authenticate(ctx, model.LoginRequest{Username: "ann", Password: "first-pass"})
	require.ErrorIs(t, err, errs.ErrInvalidCredentials)
	got, err := f.svc.Authenticate(ctx, model.LoginRequest{Username: "ann", Password: "second-pass"})
	require.NoError(t, err)
	require.Equal(t, acc.ID, got.ID)
}

func TestService_Accounts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	ann := f.identity(t, "ann", model.RoleUser)
	bob := f.identity(t, "bob", model.RoleUser)

	_, err := f.svc.GetAccount(ctx, bob, ann.AccountID)
	require.ErrorIs(t, err, errs.ErrForbidden)
	_, err = f.svc.ListAccounts(ctx, ann, model.Paging{})
	require.ErrorIs(t, err, errs.ErrForbidden)

	name := "Ann"
	updated, err := f.svc.UpdateProfile(ctx, ann, model.UpdateProfileRequest{FirstName: &name})
	require.NoError(t, err)
	require.Equal(t, "Ann", updated.FirstName)

	admin := model.RoleAdmin
	_, err = f.svc.UpdateAccount(ctx, ann, ann.AccountID, model.UpdateAccountRequest{Role: &admin})
	require.ErrorIs(t, err, errs.ErrForbidden)
	promoted, err := f.svc.UpdateAccount(ctx, f.admin, ann.AccountID, model.UpdateAccountRequest{Role: &admin})
	require.NoError(t, err)
	require.True(t, promoted.IsAdmin())

	list, err := f.svc.ListAccounts(ctx, f.admin, model.Paging{})
	require.NoError(t, err)
	require.Equal(t, 3, list.TotalElements)

	require.ErrorIs(t, f.svc.DeleteAccount(ctx, ann, bob.AccountID), errs.ErrForbidden)
	require.NoError(t, f.svc.DeleteAccount(ctx, f.admin, bob.AccountID))
	_, err = f.svc.GetAccount(ctx, f.admin, bob.AccountID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestService_PasswordBeyondBcryptLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	long := strings.Repeat("p", 100)

	_, err := f.svc.Register(ctx, model.RegisterRequest{
		Username: "ann", Email: "ann@example.com", Password: long, PasswordConfirm: long,
	})
	vErr, ok := errs.IsValidation(err)
	require.True(t, ok, "got %v", err)
	require.Contains(t, vErr.Fields, "password")
	_, err = f.repo.GetAccountByUsername(ctx, "ann")
	require.ErrorIs(t, err, errs.ErrNotFound)

	// 72 runes but more than 72 bytes
	wide := strings.Repeat("é", 72)
	_, err = f.svc.Register(ctx, model.RegisterRequest{
		Username: "ann", Email: "ann@example.com", Password: wide, PasswordConfirm: wide,
	})
	_, ok = errs.IsValidation(err)
	require.True(t, ok, "got %v", err)

	acc, err := f.svc.Register(ctx, model.RegisterRequest{
		Username: "ann", Email: "ann@example.com", Password: "first-pass", PasswordConfirm: "first-pass",
	})
	require.NoError(t, err)
	who := auth.Identity{AccountID: acc.ID, Username: acc.Username, Role: string(acc.Role)}

	err = f.svc.ChangePassword(ctx, who, model.ChangePasswordRequest{
		OldPassword: "first-pass", NewPassword: long, NewPasswordConfirm: long,
	})
	vErr, ok = errs.IsValidation(err)
	require.True(t, ok, "got %v", err)
	require.Contains(t, vErr.Fields, "new_password")

	_, err = f.svc.Authenticate(ctx, model.LoginRequest{Username: "ann", Password: "first-pass"})
	require.NoError(t, err)
}

func TestService_DeleteAccount_ReturnsOpenCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	book := f.book(t, 2)
	other := f.book(t, 1)
	ann := f.identity(t, "ann", model.RoleUser)
	bob := f.identity(t, "bob", model.RoleUser)

	_, err := f.svc.Borrow(ctx, ann, model.BorrowRequest{BookID: book.ID})
	require.NoError(t, err)
	returned, err := f.svc.Borrow(ctx, ann, model.BorrowRequest{BookID: other.ID})
	require.NoError(t, err)
	_, err = f.svc.Return(ctx, ann, returned.ID, model.ReturnRequest{})
	require.NoError(t, err)
	_, err = f.svc.Borrow(ctx, bob, model.BorrowRequest{BookID: book.ID})
	require.NoError(t, err)
	require.Equal(t, 0, f.available(t, book.ID))
	require.Equal(t, 1, f.available(t, other.ID))

	require.NoError(t, f.svc.DeleteAccount(ctx, f.admin, ann.AccountID))

	require.Equal(t, 1, f.available(t, book.ID))
	require.Equal(t, 1, f.available(t, other.ID))
	detail, err := f.svc.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, 1, detail.ActiveLoansCount)
	require.Equal(t, 1, detail.BorrowedCopies)

	mine, err := f.svc.MyLoans(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, 1, mine.ActiveCount)

	require.ErrorIs(t, f.svc.DeleteAccount(ctx, f.admin, ann.AccountID), errs.ErrNotFound)
}
