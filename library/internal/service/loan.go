package service

import (
	"context"
	"fmt"

	"github.com/Astemirdum/library-management/library/internal/errs"
	"github.com/Astemirdum/library-management/library/internal/events"
	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/Astemirdum/library-management/library/internal/policy"
	libraryRepo "github.com/Astemirdum/library-management/library/internal/repository"
	"github.com/Astemirdum/library-management/pkg/auth"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const msgReturned = "Book returned successfully"

// Borrow opens a loan of req.BookID for the caller and takes one copy off the
// shelf. The book must have a free copy and the caller must not already hold it.
func (s *Service) Borrow(ctx context.Context, who auth.Identity, req model.BorrowRequest) (model.LoanDetail, error) {
	if err := policy.Check(&who, policy.Authenticated, 0); err != nil {
		return model.LoanDetail{}, err
	}
	now := s.now()
	if req.DueDate != nil && !req.DueDate.After(now) {
		return model.LoanDetail{}, errs.NewValidationError("due_date", "due date must be in the future")
	}

	var loan model.Loan
	err := s.repo.InTx(ctx, func(tx libraryRepo.Repository) error {
		book, err := tx.GetBook(ctx, req.BookID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return errs.NewValidationError("book_id", fmt.Sprintf("Invalid pk %q - object does not exist.", fmt.Sprint(req.BookID)))
			}
			return err
		}
		if !book.IsAvailable() {
			return errs.ErrBookUnavailable
		}
		held, err := tx.HasOpenLoan(ctx, who.AccountID, book.ID)
		if err != nil {
			return err
		}
		if held {
			return errs.ErrAlreadyBorrowed
		}
		ok, err := tx.BorrowCopy(ctx, book.ID)
		if err != nil {
			return err
		}
		if !ok {
			// the last copy went to a concurrent borrower
			return errs.ErrBookUnavailable
		}
		loan, err = tx.CreateLoan(ctx, model.NewLoan(who.AccountID, book.ID, now, req.DueDate, s.loanPeriod, req.Notes))
		return err
	})
	if err != nil {
		return model.LoanDetail{}, err
	}

	s.metrics.LoanEvent("borrowed")
	s.publish(ctx, events.LoanBorrowed, loan)
	return model.NewLoanDetail(loan, now), nil
}

// Return closes loan id and puts the copy back. A late return is charged
// days overdue times the daily rate.
func (s *Service) Return(ctx context.Context, who auth.Identity, id int64, req model.ReturnRequest) (model.ReturnResult, error) {
	if err := policy.Check(&who, policy.Authenticated, 0); err != nil {
		return model.ReturnResult{}, err
	}
	now := s.now()

	var loan model.Loan
	err := s.repo.InTx(ctx, func(tx libraryRepo.Repository) error {
		var err error
		loan, err = tx.GetLoan(ctx, id)
		if err != nil {
			return err
		}
		if err := policy.Check(&who, policy.OwnerOrAdmin, loan.UserID); err != nil {
			return err
		}
		if req.Notes != "" {
			loan.Notes = req.Notes
		}
		if err := loan.Return(now, s.dailyFine); err != nil {
			return err
		}
		if err := tx.MarkReturned(ctx, loan); err != nil {
			return err
		}
		ok, err := tx.ReturnCopy(ctx, loan.BookID)
		if err != nil {
			return err
		}
		if !ok {
			s.log.Warn("return: book already has every copy on the shelf",
				zap.Int64("loan_id", loan.ID), zap.Int64("book_id", loan.BookID))
		}
		return nil
	})
	if err != nil {
		return model.ReturnResult{}, err
	}

	s.metrics.LoanEvent("returned")
	if loan.FineAmount.IsPositive() {
		s.metrics.FinesSet(1)
	}
	s.publish(ctx, events.LoanReturned, loan)
	return model.ReturnResult{
		Loan:    model.NewLoanDetail(loan, now),
		Message: msgReturned,
		Fine:    loan.FineAmount,
	}, nil
}

// ListLoans pages over loans. Non-admins only ever see their own.
func (s *Service) ListLoans(ctx context.Context, who auth.Identity, filter model.LoanFilter) (model.ListLoans, error) {
	if err := policy.Check(&who, policy.Authenticated, 0); err != nil {
		return model.ListLoans{}, err
	}
	if !who.IsAdmin() {
		own := who.AccountID
		filter.UserID = &own
	}
	loans, total, err := s.repo.ListLoans(ctx, filter)
	if err != nil {
		return model.ListLoans{}, err
	}
	paging := filter.Paging.Normalize()
	paging.TotalElements = total
	return model.ListLoans{Paging: paging, Items: s.details(loans)}, nil
}

// GetLoan reports a loan that is missing and one owned by someone else the same way.
func (s *Service) GetLoan(ctx context.Context, who auth.Identity, id int64) (model.LoanDetail, error) {
	if err := policy.Check(&who, policy.Authenticated, 0); err != nil {
		return model.LoanDetail{}, err
	}
	loan, err := s.repo.GetLoan(ctx, id)
	if err != nil {
		return model.LoanDetail{}, err
	}
	if policy.Decide(&who, policy.OwnerOrAdmin, loan.UserID) != policy.Allow {
		return model.LoanDetail{}, errs.ErrNotFound
	}
	return model.NewLoanDetail(loan, s.now()), nil
}

func (s *Service) MyLoans(ctx context.Context, who auth.Identity) (model.MyLoans, error) {
	if err := policy.Check(&who, policy.Authenticated, 0); err != nil {
		return model.MyLoans{}, err
	}
	loans, err := s.repo.ListLoansByUser(ctx, who.AccountID)
	if err != nil {
		return model.MyLoans{}, err
	}
	res := model.MyLoans{
		ActiveLoans:   make([]model.LoanDetail, 0),
		ReturnedLoans: make([]model.LoanDetail, 0),
		TotalLoans:    len(loans),
	}
	now := s.now()
	for _, l := range loans {
		if l.IsOpen() {
			res.ActiveLoans = append(res.ActiveLoans, model.NewLoanDetail(l, now))
		} else {
			res.ReturnedLoans = append(res.ReturnedLoans, model.NewLoanDetail(l, now))
		}
	}
	res.ActiveCount = len(res.ActiveLoans)
	res.ReturnedCount = len(res.ReturnedLoans)
	return res, nil
}

// UpdateLoan edits the administrative fields of a loan: due date, notes and fine_paid.
func (s *Service) UpdateLoan(ctx context.Context, who auth.Identity, id int64, req model.UpdateLoanRequest) (model.LoanDetail, error) {
	if err := policy.Check(&who, policy.AdminOnly, 0); err != nil {
		return model.LoanDetail{}, err
	}
	var updated model.Loan
	err := s.repo.InTx(ctx, func(tx libraryRepo.Repository) error {
		loan, err := tx.GetLoan(ctx, id)
		if err != nil {
			return err
		}
		if req.DueDate != nil {
			if req.DueDate.Before(loan.BorrowedAt) {
				return errs.NewValidationError("due_date", "due date cannot be before the borrow date")
			}
			loan.DueDate = *req.DueDate
		}
		if req.Notes != nil {
			loan.Notes = *req.Notes
		}
		if req.FinePaid != nil {
			loan.FinePaid = *req.FinePaid
		}
		updated, err = tx.UpdateLoan(ctx, loan)
		return err
	})
	if err != nil {
		return model.LoanDetail{}, err
	}
	return model.NewLoanDetail(updated, s.now()), nil
}

// DeleteLoan removes a loan record. Deleting a loan that is still open puts
// its copy back on the shelf.
func (s *Service) DeleteLoan(ctx context.Context, who auth.Identity, id int64) error {
	if err := policy.Check(&who, policy.AdminOnly, 0); err != nil {
		return err
	}
	return s.repo.InTx(ctx, func(tx libraryRepo.Repository) error {
		loan, err := tx.GetLoan(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteLoan(ctx, id); err != nil {
			return err
		}
		if loan.IsOpen() {
			if _, err := tx.ReturnCopy(ctx, loan.BookID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) LoanStats(ctx context.Context, who auth.Identity) (model.LoanStats, error) {
	if err := policy.Check(&who, policy.AdminOnly, 0); err != nil {
		return model.LoanStats{}, err
	}
	return s.repo.LoanStats(ctx, nil)
}

// CalculateFine recomputes the fine of one open loan. The fine is overwritten,
// so repeated calls at the same instant give the same amount.
func (s *Service) CalculateFine(ctx context.Context, who auth.Identity, id int64) (model.LoanDetail, error) {
	if err := policy.Check(&who, policy.AdminOnly, 0); err != nil {
		return model.LoanDetail{}, err
	}
	now := s.now()
	var (
		loan  model.Loan
		fined bool
	)
	err := s.repo.InTx(ctx, func(tx libraryRepo.Repository) error {
		var err error
		loan, err = tx.GetLoan(ctx, id)
		if err != nil {
			return err
		}
		if !loan.CalculateFine(now, s.dailyFine) {
			return nil
		}
		fined, err = tx.SaveFine(ctx, loan.ID, loan.FineAmount, loan.Status)
		return err
	})
	if err != nil {
		return model.LoanDetail{}, err
	}
	if fined {
		s.metrics.FinesSet(1)
		s.publish(ctx, events.LoanFinesCalculated, loan)
	}
	return model.NewLoanDetail(loan, now), nil
}

// CalculateOverdueFines sets the fine of every open loan that is past due and
// reports how many were updated.
func (s *Service) CalculateOverdueFines(ctx context.Context, who auth.Identity) (model.FineSweepResult, error) {
	if err := policy.Check(&who, policy.AdminOnly, 0); err != nil {
		return model.FineSweepResult{}, err
	}
	now := s.now()
	var fined []model.Loan
	err := s.repo.InTx(ctx, func(tx libraryRepo.Repository) error {
		open, err := tx.ListOpenLoans(ctx)
		if err != nil {
			return err
		}
		for _, loan := range open {
			if !loan.CalculateFine(now, s.dailyFine) {
				continue
			}
			ok, err := tx.SaveFine(ctx, loan.ID, loan.FineAmount, loan.Status)
			if err != nil {
				return errors.Wrapf(err, "save fine of loan %d", loan.ID)
			}
			if ok {
				fined = append(fined, loan)
			}
		}
		return nil
	})
	if err != nil {
		return model.FineSweepResult{}, err
	}

	s.metrics.FinesSet(len(fined))
	for _, loan := range fined {
		s.publish(ctx, events.LoanFinesCalculated, loan)
	}
	s.log.Info("overdue fines calculated", zap.Int("updated", len(fined)))
	return model.FineSweepResult{
		Message:      fmt.Sprintf("Calculated fines for %d overdue loans", len(fined)),
		UpdatedCount: len(fined),
	}, nil
}

func (s *Service) details(loans []model.Loan) []model.LoanDetail {
	now := s.now()
	items := make([]model.LoanDetail, 0, len(loans))
	for _, l := range loans {
		items = append(items, model.NewLoanDetail(l, now))
	}
	return items
}
