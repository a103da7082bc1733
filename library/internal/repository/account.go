package repository

import (
	"context"
	"strings"

	"github.com/Astemirdum/library-management/library/internal/errs"
	"github.com/Astemirdum/library-management/library/internal/model"
	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

var accountColumns = []string{
	"id", "username", "email", "password_hash", "role", "is_staff", "first_name", "last_name",
	"phone", "address", "date_of_birth", "created_at", "updated_at",
}

func (r *repository) CreateAccount(ctx context.Context, acc model.Account) (model.Account, error) {
	b := qb.Insert(accountsTableName).
		Columns("username", "email", "password_hash", "role", "is_staff", "first_name", "last_name", "phone", "address", "date_of_birth").
		Values(acc.Username, acc.Email, acc.PasswordHash, acc.Role, acc.IsStaff, acc.FirstName, acc.LastName, acc.Phone, acc.Address, acc.DateOfBirth).
		Suffix("returning " + strings.Join(accountColumns, ", "))

	var created model.Account
	if err := r.get(ctx, &created, b); err != nil {
		return model.Account{}, err
	}
	return created, nil
}

func (r *repository) GetAccount(ctx context.Context, id int64) (model.Account, error) {
	var acc model.Account
	b := qb.Select(accountColumns...).From(accountsTableName).Where(sq.Eq{"id": id})
	if err := r.get(ctx, &acc, b); err != nil {
		return model.Account{}, err
	}
	return acc, nil
}

func (r *repository) GetAccountByUsername(ctx context.Context, username string) (model.Account, error) {
	var acc model.Account
	b := qb.Select(accountColumns...).From(accountsTableName).Where(sq.Eq{"username": username})
	if err := r.get(ctx, &acc, b); err != nil {
		return model.Account{}, err
	}
	return acc, nil
}

func (r *repository) ListAccounts(ctx context.Context, paging model.Paging) (model.ListAccounts, error) {
	paging = paging.Normalize()

	var total int
	if err := r.get(ctx, &total, qb.Select("count(*)").From(accountsTableName)); err != nil {
		return model.ListAccounts{}, err
	}

	q, args, err := qb.Select(accountColumns...).
		From(accountsTableName).
		OrderBy("created_at desc").
		Limit(uint64(paging.PageSize)).
		Offset(paging.Offset()).
		ToSql()
	if err != nil {
		return model.ListAccounts{}, err
	}
	items := make([]model.Account, 0)
	if err := sqlx.SelectContext(ctx, r.db, &items, q, args...); err != nil {
		return model.ListAccounts{}, err
	}
	paging.TotalElements = total
	return model.ListAccounts{Paging: paging, Items: items}, nil
}

func (r *repository) UpdateAccount(ctx context.Context, acc model.Account) (model.Account, error) {
	b := qb.Update(accountsTableName).
		SetMap(map[string]interface{}{
			"email":         acc.Email,
			"role":          acc.Role,
			"is_staff":      acc.IsStaff,
			"first_name":    acc.FirstName,
			"last_name":     acc.LastName,
			"phone":         acc.Phone,
			"address":       acc.Address,
			"date_of_birth": acc.DateOfBirth,
			"updated_at":    sq.Expr("now()"),
		}).
		Where(sq.Eq{"id": acc.ID}).
		Suffix("returning " + strings.Join(accountColumns, ", "))

	var updated model.Account
	if err := r.get(ctx, &updated, b); err != nil {
		return model.Account{}, err
	}
	return updated, nil
}

func (r *repository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	n, err := r.exec(ctx, qb.Update(accountsTableName).
		Set("password_hash", passwordHash).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *repository) DeleteAccount(ctx context.Context, id int64) error {
	n, err := r.exec(ctx, qb.Delete(accountsTableName).Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *repository) CredentialsTaken(ctx context.Context, username, email string) (bool, bool, error) {
	var taken struct {
		Username bool `db:"username_taken"`
		Email    bool `db:"email_taken"`
	}
	b := qb.Select().
		Column(sq.Expr("exists(select 1 from accounts where username = ?) as username_taken", username)).
		Column(sq.Expr("exists(select 1 from accounts where lower(email) = lower(?)) as email_taken", email))
	if err := r.get(ctx, &taken, b); err != nil {
		return false, false, err
	}
	return taken.Username, taken.Email, nil
}
