package repository

import (
	"context"
	"database/sql"

	"github.com/Astemirdum/library-management/library/internal/errs"
	"github.com/Astemirdum/library-management/library/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type AccountRepository interface {
	CreateAccount(ctx context.Context, acc model.Account) (model.Account, error)
	GetAccount(ctx context.Context, id int64) (model.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (model.Account, error)
	ListAccounts(ctx context.Context, paging model.Paging) (model.ListAccounts, error)
	UpdateAccount(ctx context.Context, acc model.Account) (model.Account, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	DeleteAccount(ctx context.Context, id int64) error
	CredentialsTaken(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error)
}

type BookRepository interface {
	CreateBook(ctx context.Context, book model.Book) (model.Book, error)
	GetBook(ctx context.Context, id int64) (model.Book, error)
	ListBooks(ctx context.Context, filter model.BookFilter) (model.ListBooks, error)
	UpdateBook(ctx context.Context, book model.Book) (model.Book, error)
	DeleteBook(ctx context.Context, id int64) error
	BorrowCopy(ctx context.Context, id int64) (bool, error)
	ReturnCopy(ctx context.Context, id int64) (bool, error)
	BookStats(ctx context.Context) (model.BookStats, error)
	Categories(ctx context.Context) ([]string, error)
}

type LoanRepository interface {
	CreateLoan(ctx context.Context, loan model.Loan) (model.Loan, error)
	GetLoan(ctx context.Context, id int64) (model.Loan, error)
	ListLoans(ctx context.Context, filter model.LoanFilter) ([]model.Loan, int, error)
	ListOpenLoans(ctx context.Context) ([]model.Loan, error)
	ListLoansByUser(ctx context.Context, userID int64) ([]model.Loan, error)
	HasOpenLoan(ctx context.Context, userID, bookID int64) (bool, error)
	CountOpenLoansByBook(ctx context.Context, bookID int64) (int, error)
	CountOpenLoansByUser(ctx context.Context, userID int64) (int, error)
	MarkReturned(ctx context.Context, loan model.Loan) error
	SaveFine(ctx context.Context, id int64, fine decimal.Decimal, status model.LoanStatus) (bool, error)
	UpdateLoan(ctx context.Context, loan model.Loan) (model.Loan, error)
	DeleteLoan(ctx context.Context, id int64) error
	LoanStats(ctx context.Context, userID *int64) (model.LoanStats, error)
}

type Repository interface {
	AccountRepository
	BookRepository
	LoanRepository
	// InTx runs fn inside one transaction; the Repository handed to fn is bound to it.
	InTx(ctx context.Context, fn func(repo Repository) error) error
}

type repository struct {
	db   sqlx.ExtContext
	root *sqlx.DB
	log  *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:   db,
		root: db,
		log:  log.Named("repo"),
	}, nil
}

var _ Repository = (*repository)(nil)

const (
	accountsTableName = `accounts`
	booksTableName    = `books`
	loansTableName    = `loans`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *repository) InTx(ctx context.Context, fn func(repo Repository) error) error {
	if _, ok := r.db.(*sqlx.Tx); ok {
		return fn(r)
	}
	tx, err := r.root.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	if err := fn(&repository{db: tx, root: r.root, log: r.log}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.log.Error("rollback", zap.Error(rbErr))
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}

func (r *repository) get(ctx context.Context, dest interface{}, b sq.Sqlizer) error {
	q, args, err := b.ToSql()
	if err != nil {
		return err
	}
	if err := sqlx.GetContext(ctx, r.db, dest, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errs.ErrNotFound
		}
		r.log.Error("get", zap.String("q", q), zap.Any("args", args), zap.Error(err))
		return mapError(err)
	}
	return nil
}

func (r *repository) exec(ctx context.Context, b sq.Sqlizer) (int64, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		r.log.Error("exec", zap.String("q", q), zap.Any("args", args), zap.Error(err))
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

// mapError turns constraint violations into domain errors.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		switch pgErr.ConstraintName {
		case "accounts_username_key":
			return errs.NewValidationError("username", "A user with that username already exists.")
		case "accounts_email_key":
			return errs.NewValidationError("email", "user with this email already exists.")
		case "books_isbn_key":
			return errs.NewValidationError("isbn", "book with this isbn already exists.")
		case "loans_open_pair_uidx":
			return errs.ErrAlreadyBorrowed
		}
	case pgerrcode.CheckViolation:
		if pgErr.ConstraintName == "books_copies_check" {
			return errs.NewValidationError("available_copies", "available copies cannot exceed total copies")
		}
	case pgerrcode.ForeignKeyViolation:
		return errs.ErrNotFound
	}
	return err
}
