package repository

import (
	"context"
	"strings"

	"github.com/Astemirdum/library-management/library/internal/errs"
	"github.com/Astemirdum/library-management/library/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var loanColumns = []string{
	"id", "user_id", "book_id", "borrowed_at", "due_date", "returned_at", "status", "notes", "fine_amount", "fine_paid",
}

var openLoan = sq.Eq{"returned_at": nil}

func (r *repository) CreateLoan(ctx context.Context, loan model.Loan) (model.Loan, error) {
	b := qb.Insert(loansTableName).
		Columns("user_id", "book_id", "borrowed_at", "due_date", "status", "notes", "fine_amount").
		Values(loan.UserID, loan.BookID, loan.BorrowedAt, loan.DueDate, loan.Status, loan.Notes, loan.FineAmount).
		Suffix("returning " + strings.Join(loanColumns, ", "))

	var created model.Loan
	if err := r.get(ctx, &created, b); err != nil {
		return model.Loan{}, err
	}
	return created, nil
}

func (r *repository) GetLoan(ctx context.Context, id int64) (model.Loan, error) {
	var loan model.Loan
	b := qb.Select(loanColumns...).From(loansTableName).Where(sq.Eq{"id": id})
	if err := r.get(ctx, &loan, b); err != nil {
		return model.Loan{}, err
	}
	return loan, nil
}

func (r *repository) ListLoans(ctx context.Context, filter model.LoanFilter) ([]model.Loan, int, error) {
	paging := filter.Paging.Normalize()
	where := sq.And{}
	if filter.UserID != nil {
		where = append(where, sq.Eq{"user_id": *filter.UserID})
	}
	if filter.BookID != nil {
		where = append(where, sq.Eq{"book_id": *filter.BookID})
	}
	if filter.Status != "" {
		where = append(where, sq.Eq{"status": filter.Status})
	}

	var total int
	if err := r.get(ctx, &total, qb.Select("count(*)").From(loansTableName).Where(where)); err != nil {
		return nil, 0, err
	}

	q, args, err := qb.Select(loanColumns...).
		From(loansTableName).
		Where(where).
		OrderBy("borrowed_at desc", "id desc").
		Limit(uint64(paging.PageSize)).
		Offset(paging.Offset()).
		ToSql()
	if err != nil {
		return nil, 0, err
	}
	loans := make([]model.Loan, 0)
	if err := sqlx.SelectContext(ctx, r.db, &loans, q, args...); err != nil {
		return nil, 0, err
	}
	return loans, total, nil
}

func (r *repository) ListOpenLoans(ctx context.Context) ([]model.Loan, error) {
	return r.selectLoans(ctx, qb.Select(loanColumns...).
		From(loansTableName).
		Where(openLoan).
		OrderBy("due_date"))
}

func (r *repository) ListLoansByUser(ctx context.Context, userID int64) ([]model.Loan, error) {
	return r.selectLoans(ctx, qb.Select(loanColumns...).
		From(loansTableName).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("borrowed_at desc", "id desc"))
}

func (r *repository) selectLoans(ctx context.Context, b sq.SelectBuilder) ([]model.Loan, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	loans := make([]model.Loan, 0)
	if err := sqlx.SelectContext(ctx, r.db, &loans, q, args...); err != nil {
		return nil, err
	}
	return loans, nil
}

func (r *repository) HasOpenLoan(ctx context.Context, userID, bookID int64) (bool, error) {
	var exists bool
	b := qb.Select().Column(sq.Expr(
		"exists(select 1 from loans where user_id = ? and book_id = ? and returned_at is null)", userID, bookID))
	if err := r.get(ctx, &exists, b); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *repository) CountOpenLoansByBook(ctx context.Context, bookID int64) (int, error) {
	return r.countOpen(ctx, sq.Eq{"book_id": bookID})
}

func (r *repository) CountOpenLoansByUser(ctx context.Context, userID int64) (int, error) {
	return r.countOpen(ctx, sq.Eq{"user_id": userID})
}

func (r *repository) countOpen(ctx context.Context, pred sq.Eq) (int, error) {
	var n int
	b := qb.Select("count(*)").From(loansTableName).Where(pred).Where(openLoan)
	if err := r.get(ctx, &n, b); err != nil {
		return 0, err
	}
	return n, nil
}

// MarkReturned persists a loan closed by Loan.Return. The row is only touched
// while still open, so a concurrent second return gets ErrAlreadyReturned.
func (r *repository) MarkReturned(ctx context.Context, loan model.Loan) error {
	n, err := r.exec(ctx, qb.Update(loansTableName).
		Set("returned_at", loan.ReturnedAt).
		Set("status", loan.Status).
		Set("fine_amount", loan.FineAmount).
		Set("notes", loan.Notes).
		Where(sq.Eq{"id": loan.ID}).
		Where(openLoan))
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrAlreadyReturned
	}
	return nil
}

func (r *repository) SaveFine(ctx context.Context, id int64, fine decimal.Decimal, status model.LoanStatus) (bool, error) {
	n, err := r.exec(ctx, qb.Update(loansTableName).
		Set("fine_amount", fine).
		Set("status", status).
		Where(sq.Eq{"id": id}).
		Where(openLoan))
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *repository) UpdateLoan(ctx context.Context, loan model.Loan) (model.Loan, error) {
	b := qb.Update(loansTableName).
		SetMap(map[string]interface{}{
			"due_date":  loan.DueDate,
			"notes":     loan.Notes,
			"fine_paid": loan.FinePaid,
		}).
		Where(sq.Eq{"id": loan.ID}).
		Suffix("returning " + strings.Join(loanColumns, ", "))

	var updated model.Loan
	if err := r.get(ctx, &updated, b); err != nil {
		return model.Loan{}, err
	}
	return updated, nil
}

func (r *repository) DeleteLoan(ctx context.Context, id int64) error {
	n, err := r.exec(ctx, qb.Delete(loansTableName).Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// LoanStats aggregates loans of one account, or of everyone when userID is nil.
// For a single account "active" means not yet returned, whatever the status;
// library-wide it means status active.
func (r *repository) LoanStats(ctx context.Context, userID *int64) (model.LoanStats, error) {
	active := "count(*) filter (where returned_at is null and status = 'active') as active_loans"
	if userID != nil {
		active = "count(*) filter (where returned_at is null) as active_loans"
	}
	b := qb.Select(
		"count(*) as total_loans",
		active,
		"count(*) filter (where status = 'returned') as returned_loans",
		"count(*) filter (where status = 'overdue') as overdue_loans",
		"coalesce(sum(fine_amount) filter (where fine_amount > 0), 0) as total_fines",
		"coalesce(sum(fine_amount) filter (where fine_amount > 0 and not fine_paid), 0) as unpaid_fines",
	).From(loansTableName)
	if userID != nil {
		b = b.Where(sq.Eq{"user_id": *userID})
	}

	var stats model.LoanStats
	if err := r.get(ctx, &stats, b); err != nil {
		return model.LoanStats{}, err
	}
	return stats, nil
}
