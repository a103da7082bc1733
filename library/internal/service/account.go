package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Astemirdum/library-management/library/internal/errs"
	"github.com/Astemirdum/library-management/library/internal/model"
	"github.com/Astemirdum/library-management/library/internal/policy"
	libraryRepo "github.com/Astemirdum/library-management/library/internal/repository"
	"github.com/Astemirdum/library-management/pkg/auth"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// Register creates an account with the user role. Username or email clashes
// and mismatching passwords are reported together as field errors.
func (s *Service) Register(ctx context.Context, req model.RegisterRequest) (model.Account, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	vErr := &errs.ValidationError{}
	if req.Password != req.PasswordConfirm {
		vErr.Add("password", "Password fields didn't match.")
	}
	usernameTaken, emailTaken, err := s.repo.CredentialsTaken(ctx, req.Username, req.Email)
	if err != nil {
		return model.Account{}, err
	}
	if usernameTaken {
		vErr.Add("username", "A user with that username already exists.")
	}
	if emailTaken {
		vErr.Add("email", "user with this email already exists.")
	}
	if len(vErr.Fields) > 0 {
		return model.Account{}, vErr
	}

	hash, err := s.hashPassword("password", req.Password)
	if err != nil {
		return model.Account{}, err
	}
	return s.repo.CreateAccount(ctx, model.Account{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Address:      req.Address,
		DateOfBirth:  req.DateOfBirth,
	})
}

// Authenticate verifies the password of username. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, req model.LoginRequest) (model.Account, error) {
	acc, err := s.repo.GetAccountByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Account{}, errs.ErrInvalidCredentials
		}
		return model.Account{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.Password)) != nil {
		return model.Account{}, errs.ErrInvalidCredentials
	}
	return acc, nil
}

func (s *Service) ChangePassword(ctx context.Context, who auth.Identity, req model.ChangePasswordRequest) error {
	if err := policy.Check(&who, policy.Authenticated, 0); err != nil {
		return err
	}
	if req.NewPassword != req.NewPasswordConfirm {
		return errs.NewValidationError("new_password", "Password fields didn't match.")
	}
	acc, err := s.repo.GetAccount(ctx, who.AccountID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(req.OldPassword)) != nil {
		return errs.NewValidationError("old_password", "Incorrect old password")
	}
	hash, err := s.hashPassword("new_password", req.NewPassword)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, acc.ID, hash)
}

func (s *Service) Profile(ctx context.Context, who auth.Identity) (model.AccountDetail, error) {
	if err := policy.Check(&who, policy.Authenticated, 0); err != nil {
		return model.AccountDetail{}, err
	}
	return s.accountDetail(ctx, who.AccountID)
}

func (s *Service) UpdateProfile(ctx context.Context, who auth.Identity, req model.UpdateProfileRequest) (model.Account, error) {
	if err := policy.Check(&who, policy.Authenticated, 0); err != nil {
		return model.Account{}, err
	}
	var updated model.Account
	err := s.repo.InTx(ctx, func(tx libraryRepo.Repository) error {
		acc, err := tx.GetAccount(ctx, who.AccountID)
		if err != nil {
			return err
		}
		updated, err = tx.UpdateAccount(ctx, req.Apply(acc))
		return err
	})
	return updated, err
}

// AccountStats aggregates the caller's own loans.
func (s *Service) AccountStats(ctx context.Context, who auth.Identity) (model.LoanStats, error) {
	if err := policy.Check(&who, policy.Authenticated, 0); err != nil {
		return model.LoanStats{}, err
	}
	id := who.AccountID
	return s.repo.LoanStats(ctx, &id)
}

func (s *Service) ListAccounts(ctx context.Context, who auth.Identity, paging model.Paging) (model.ListAccounts, error) {
	if err := policy.Check(&who, policy.AdminOnly, 0); err != nil {
		return model.ListAccounts{}, err
	}
	return s.repo.ListAccounts(ctx, paging)
}

func (s *Service) GetAccount(ctx context.Context, who auth.Identity, id int64) (model.AccountDetail, error) {
	if err := policy.Check(&who, policy.OwnerOrAdmin, id); err != nil {
		return model.AccountDetail{}, err
	}
	return s.accountDetail(ctx, id)
}

// UpdateAccount edits account id. Role and staff flag are admin-only fields.
func (s *Service) UpdateAccount(ctx context.Context, who auth.Identity, id int64, req model.UpdateAccountRequest) (model.Account, error) {
	if err := policy.Check(&who, policy.OwnerOrAdmin, id); err != nil {
		return model.Account{}, err
	}
	if (req.Role != nil || req.IsStaff != nil) && !who.IsAdmin() {
		return model.Account{}, errs.ErrForbidden
	}
	var updated model.Account
	err := s.repo.InTx(ctx, func(tx libraryRepo.Repository) error {
		acc, err := tx.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		acc = req.UpdateProfileRequest.Apply(acc)
		if req.Email != nil {
			acc.Email = strings.TrimSpace(*req.Email)
		}
		if req.Role != nil {
			acc.Role = *req.Role
		}
		if req.IsStaff != nil {
			acc.IsStaff = *req.IsStaff
		}
		updated, err = tx.UpdateAccount(ctx, acc)
		return err
	})
	return updated, err
}

// DeleteAccount removes account id and its loans.
func (s *Service) DeleteAccount(ctx context.Context, who auth.Identity, id int64) error {
	if err := policy.Check(&who, policy.AdminOnly, 0); err != nil {
		return err
	}
	// loans cascade with the account, so open ones hand their copies back first
	return s.repo.InTx(ctx, func(tx libraryRepo.Repository) error {
		if _, err := tx.GetAccount(ctx, id); err != nil {
			return err
		}
		loans, err := tx.ListLoansByUser(ctx, id)
		if err != nil {
			return err
		}
		for _, loan := range loans {
			if !loan.IsOpen() {
				continue
			}
			if _, err := tx.ReturnCopy(ctx, loan.BookID); err != nil {
				return errors.Wrapf(err, "return copy of loan %d", loan.ID)
			}
		}
		return tx.DeleteAccount(ctx, id)
	})
}

func (s *Service) accountDetail(ctx context.Context, id int64) (model.AccountDetail, error) {
	acc, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return model.AccountDetail{}, err
	}
	active, err := s.repo.CountOpenLoansByUser(ctx, id)
	if err != nil {
		return model.AccountDetail{}, err
	}
	return model.AccountDetail{Account: acc, ActiveLoansCount: active}, nil
}

// bcrypt only reads this many bytes of a password.
const maxPasswordBytes = 72

// hashPassword reports a password bcrypt cannot take as an error on field.
func (s *Service) hashPassword(field, password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", errs.NewValidationError(field, fmt.Sprintf("must be at most %d bytes", maxPasswordBytes))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(hash), nil
}
