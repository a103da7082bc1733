package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Astemirdum/library-management/library/internal/errs"
	"github.com/Astemirdum/library-management/library/internal/model"
	libraryRepo "github.com/Astemirdum/library-management/library/internal/repository"
	"github.com/shopspring/decimal"
)

// memRepo keeps rows in maps and mirrors the conditional updates of the
// postgres repository.
type memRepo struct {
	mu       sync.Mutex
	seq      int64
	accounts map[int64]model.Account
	books    map[int64]model.Book
	loans    map[int64]model.Loan
}

var _ libraryRepo.Repository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{
		accounts: make(map[int64]model.Account),
		books:    make(map[int64]model.Book),
		loans:    make(map[int64]model.Loan),
	}
}

func (r *memRepo) nextID() int64 {
	r.seq++
	return r.seq
}

func (r *memRepo) InTx(_ context.Context, fn func(repo libraryRepo.Repository) error) error {
	return fn(r)
}

func (r *memRepo) CreateAccount(_ context.Context, acc model.Account) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Username == acc.Username {
			return model.Account{}, errs.NewValidationError("username", "A user with that username already exists.")
		}
		if strings.EqualFold(a.Email, acc.Email) {
			return model.Account{}, errs.NewValidationError("email", "user with this email already exists.")
		}
	}
	acc.ID = r.nextID()
	r.accounts[acc.ID] = acc
	return acc, nil
}

func (r *memRepo) GetAccount(_ context.Context, id int64) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[id]
	if !ok {
		return model.Account{}, errs.ErrNotFound
	}
	return acc, nil
}

func (r *memRepo) GetAccountByUsername(_ context.Context, username string) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Username == username {
			return a, nil
		}
	}
	return model.Account{}, errs.ErrNotFound
}

func (r *memRepo) ListAccounts(_ context.Context, paging model.Paging) (model.ListAccounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	paging = paging.Normalize()
	items := make([]model.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		items = append(items, a)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	paging.TotalElements = len(items)
	return model.ListAccounts{Paging: paging, Items: items}, nil
}

func (r *memRepo) UpdateAccount(_ context.Context, acc model.Account) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[acc.ID]; !ok {
		return model.Account{}, errs.ErrNotFound
	}
	r.accounts[acc.ID] = acc
	return acc, nil
}

func (r *memRepo) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[id]
	if !ok {
		return errs.ErrNotFound
	}
	acc.PasswordHash = passwordHash
	r.accounts[id] = acc
	return nil
}

func (r *memRepo) DeleteAccount(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return errs.ErrNotFound
	}
	delete(r.accounts, id)
	for loanID, loan := range r.loans {
		if loan.UserID == id {
			delete(r.loans, loanID)
		}
	}
	return nil
}

func (r *memRepo) CredentialsTaken(_ context.Context, username, email string) (bool, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var u, e bool
	for _, a := range r.accounts {
		u = u || a.Username == username
		e = e || strings.EqualFold(a.Email, email)
	}
	return u, e, nil
}

func (r *memRepo) CreateBook(_ context.Context, book model.Book) (model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	book.ID = r.nextID()
	r.books[book.ID] = book
	return book, nil
}

func (r *memRepo) GetBook(_ context.Context, id int64) (model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return model.Book{}, errs.ErrNotFound
	}
	return b, nil
}

func (r *memRepo) ListBooks(_ context.Context, filter model.BookFilter) (model.ListBooks, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	paging := filter.Paging.Normalize()
	items := make([]model.BookListItem, 0)
	for _, b := range r.books {
		if filter.Category != "" && b.Category != filter.Category {
			continue
		}
		items = append(items, model.BookListItem{
			ID: b.ID, Title: b.Title, Author: b.Author, ISBN: b.ISBN, Category: b.Category,
			AvailableCopies: b.AvailableCopies, IsAvailable: b.IsAvailable(),
		})
	}
	paging.TotalElements = len(items)
	return model.ListBooks{Paging: paging, Items: items}, nil
}

// UpdateBook shifts available copies by the change in total copies, as the
// SQL update does.
func (r *memRepo) UpdateBook(_ context.Context, book model.Book) (model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.books[book.ID]
	if !ok {
		return model.Book{}, errs.ErrNotFound
	}
	book.AvailableCopies = stored.AvailableCopies + (book.TotalCopies - stored.TotalCopies)
	if book.AvailableCopies < 0 || book.AvailableCopies > book.TotalCopies {
		return model.Book{}, errs.NewValidationError("available_copies", "available copies cannot exceed total copies")
	}
	r.books[book.ID] = book
	return book, nil
}

func (r *memRepo) DeleteBook(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[id]; !ok {
		return errs.ErrNotFound
	}
	delete(r.books, id)
	return nil
}

func (r *memRepo) BorrowCopy(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return false, nil
	}
	if !b.Borrow() {
		return false, nil
	}
	r.books[id] = b
	return true, nil
}

func (r *memRepo) ReturnCopy(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return false, nil
	}
	if !b.ReturnCopy() {
		return false, nil
	}
	r.books[id] = b
	return true, nil
}

func (r *memRepo) BookStats(context.Context) (model.BookStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var st model.BookStats
	categories := make(map[string]struct{})
	for _, b := range r.books {
		st.TotalBooks++
		if b.IsAvailable() {
			st.AvailableBooks++
		} else {
			st.BorrowedBooks++
		}
		st.TotalCopies += b.TotalCopies
		st.AvailableCopies += b.AvailableCopies
		if b.Category != "" {
			categories[b.Category] = struct{}{}
		}
	}
	st.Categories = len(categories)
	return st, nil
}

func (r *memRepo) Categories(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, b := range r.books {
		if _, ok := seen[b.Category]; ok || b.Category == "" {
			continue
		}
		seen[b.Category] = struct{}{}
		out = append(out, b.Category)
	}
	sort.Strings(out)
	return out, nil
}

func (r *memRepo) CreateLoan(_ context.Context, loan model.Loan) (model.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.loans {
		if l.IsOpen() && l.UserID == loan.UserID && l.BookID == loan.BookID {
			return model.Loan{}, errs.ErrAlreadyBorrowed
		}
	}
	loan.ID = r.nextID()
	r.loans[loan.ID] = loan
	return loan, nil
}

func (r *memRepo) GetLoan(_ context.Context, id int64) (model.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.loans[id]
	if !ok {
		return model.Loan{}, errs.ErrNotFound
	}
	return l, nil
}

func (r *memRepo) ListLoans(_ context.Context, filter model.LoanFilter) ([]model.Loan, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Loan, 0)
	for _, l := range r.loans {
		if filter.UserID != nil && l.UserID != *filter.UserID {
			continue
		}
		if filter.BookID != nil && l.BookID != *filter.BookID {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *memRepo) ListOpenLoans(context.Context) ([]model.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Loan, 0)
	for _, l := range r.loans {
		if l.IsOpen() {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) ListLoansByUser(ctx context.Context, userID int64) ([]model.Loan, error) {
	loans, _, err := r.ListLoans(ctx, model.LoanFilter{UserID: &userID})
	return loans, err
}

func (r *memRepo) HasOpenLoan(_ context.Context, userID, bookID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.loans {
		if l.IsOpen() && l.UserID == userID && l.BookID == bookID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) CountOpenLoansByBook(_ context.Context, bookID int64) (int, error) {
	return r.countOpen(func(l model.Loan) bool { return l.BookID == bookID }), nil
}

func (r *memRepo) CountOpenLoansByUser(_ context.Context, userID int64) (int, error) {
	return r.countOpen(func(l model.Loan) bool { return l.UserID == userID }), nil
}

func (r *memRepo) countOpen(match func(model.Loan) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, l := range r.loans {
		if l.IsOpen() && match(l) {
			n++
		}
	}
	return n
}

func (r *memRepo) MarkReturned(_ context.Context, loan model.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.loans[loan.ID]
	if !ok || !stored.IsOpen() {
		return errs.ErrAlreadyReturned
	}
	r.loans[loan.ID] = loan
	return nil
}

func (r *memRepo) SaveFine(_ context.Context, id int64, fine decimal.Decimal, status model.LoanStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.loans[id]
	if !ok || !l.IsOpen() {
		return false, nil
	}
	l.FineAmount = fine
	l.Status = status
	r.loans[id] = l
	return true, nil
}

func (r *memRepo) UpdateLoan(_ context.Context, loan model.Loan) (model.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.loans[loan.ID]
	if !ok {
		return model.Loan{}, errs.ErrNotFound
	}
	stored.DueDate = loan.DueDate
	stored.Notes = loan.Notes
	stored.FinePaid = loan.FinePaid
	r.loans[loan.ID] = stored
	return stored, nil
}

func (r *memRepo) DeleteLoan(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.loans[id]; !ok {
		return errs.ErrNotFound
	}
	delete(r.loans, id)
	return nil
}

func (r *memRepo) LoanStats(_ context.Context, userID *int64) (model.LoanStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := model.LoanStats{TotalFines: decimal.Zero, UnpaidFines: decimal.Zero}
	for _, l := range r.loans {
		if userID != nil && l.UserID != *userID {
			continue
		}
		st.TotalLoans++
		if l.IsOpen() && (userID != nil || l.Status == model.LoanStatusActive) {
			st.ActiveLoans++
		}
		switch l.Status {
		case model.LoanStatusReturned:
			st.ReturnedLoans++
		case model.LoanStatusOverdue:
			st.OverdueLoans++
		}
		if l.FineAmount.IsPositive() {
			st.TotalFines = st.TotalFines.Add(l.FineAmount)
			if !l.FinePaid {
				st.UnpaidFines = st.UnpaidFines.Add(l.FineAmount)
			}
		}
	}
	return st, nil
}
