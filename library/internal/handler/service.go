package handler

import (
	"context"

	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/Astemirdum/library-management/library/internal/service"
	"github.com/Astemirdum/library-management/pkg/auth"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

var (
	_ AccountService = (*service.Service)(nil)
	_ BookService    = (*service.Service)(nil)
	_ LoanService    = (*service.Service)(nil)
)

type AccountService interface {
	Register(ctx context.Context, req model.RegisterRequest) (model.Account, error)
	Authenticate(ctx context.Context, req model.LoginRequest) (model.Account, error)
	ChangePassword(ctx context.Context, who auth.Identity, req model.ChangePasswordRequest) error
	Profile(ctx context.Context, who auth.Identity) (model.AccountDetail, error)
	UpdateProfile(ctx context.Context, who auth.Identity, req model.UpdateProfileRequest) (model.Account, error)
	AccountStats(ctx context.Context, who auth.Identity) (model.LoanStats, error)
	ListAccounts(ctx context.Context, who auth.Identity, paging model.Paging) (model.ListAccounts, error)
	GetAccount(ctx context.Context, who auth.Identity, id int64) (model.AccountDetail, error)
	UpdateAccount(ctx context.Context, who auth.Identity, id int64, req model.UpdateAccountRequest) (model.Account, error)
	DeleteAccount(ctx context.Context, who auth.Identity, id int64) error
}

type BookService interface {
	CreateBook(ctx context.Context, who auth.Identity, req model.CreateBookRequest) (model.Book, error)
	GetBook(ctx context.Context, id int64) (model.BookDetail, error)
	ListBooks(ctx context.Context, filter model.BookFilter) (model.ListBooks, error)
	UpdateBook(ctx context.Context, who auth.Identity, id int64, req model.UpdateBookRequest) (model.Book, error)
	DeleteBook(ctx context.Context, who auth.Identity, id int64) error
	BookStats(ctx context.Context) (model.BookStats, error)
	Categories(ctx context.Context) ([]string, error)
}

type LoanService interface {
	Borrow(ctx context.Context, who auth.Identity, req model.BorrowRequest) (model.LoanDetail, error)
	Return(ctx context.Context, who auth.Identity, id int64, req model.ReturnRequest) (model.ReturnResult, error)
	ListLoans(ctx context.Context, who auth.Identity, filter model.LoanFilter) (model.ListLoans, error)
	GetLoan(ctx context.Context, who auth.Identity, id int64) (model.LoanDetail, error)
	MyLoans(ctx context.Context, who auth.Identity) (model.MyLoans, error)
	UpdateLoan(ctx context.Context, who auth.Identity, id int64, req model.UpdateLoanRequest) (model.LoanDetail, error)
	DeleteLoan(ctx context.Context, who auth.Identity, id int64) error
	LoanStats(ctx context.Context, who auth.Identity) (model.LoanStats, error)
	CalculateFine(ctx context.Context, who auth.Identity, id int64) (model.LoanDetail, error)
	CalculateOverdueFines(ctx context.Context, who auth.Identity) (model.FineSweepResult, error)
}
