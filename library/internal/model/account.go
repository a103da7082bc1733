package model

import (
	"time"

	"github.com/Astemirdum/library-management/pkg/auth"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = auth.RoleAdmin
)

type Account struct {
	ID           int64      `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Role         Role       `json:"role" db:"role"`
	IsStaff      bool       `json:"is_staff" db:"is_staff"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	Phone        string     `json:"phone" db:"phone"`
	Address      string     `json:"address" db:"address"`
	DateOfBirth  *time.Time `json:"date_of_birth" db:"date_of_birth"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

func (a Account) IsAdmin() bool {
	return a.Role == RoleAdmin || a.IsStaff
}

func (a Account) Profile() auth.Profile {
	return auth.Profile{
		AccountID: a.ID,
		Username:  a.Username,
		Role:      string(a.Role),
		Staff:     a.IsStaff,
	}
}

type AccountDetail struct {
	Account          `json:",inline"`
	ActiveLoansCount int `json:"active_loans_count"`
}

type ListAccounts struct {
	Paging `json:",inline"`
	Items  []Account `json:"items"`
}

type RegisterRequest struct {
	Username        string     `json:"username" validate:"required,min=3,max=150"`
	Email           string     `json:"email" validate:"required,email,max=254"`
	Password        string     `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirm string     `json:"password_confirm" validate:"required"`
	FirstName       string     `json:"first_name" validate:"max=150"`
	LastName        string     `json:"last_name" validate:"max=150"`
	Phone           string     `json:"phone" validate:"max=20"`
	Address         string     `json:"address"`
	DateOfBirth     *time.Time `json:"date_of_birth"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	OldPassword        string `json:"old_password" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required,min=8,max=72"`
	NewPasswordConfirm string `json:"new_password_confirm" validate:"required"`
}

type LogoutRequest struct {
	Refresh string `json:"refresh"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// UpdateProfileRequest holds the fields an owner may change on their own
// profile; username and email stay fixed.
type UpdateProfileRequest struct {
	FirstName   *string    `json:"first_name" validate:"omitempty,max=150"`
	LastName    *string    `json:"last_name" validate:"omitempty,max=150"`
	Phone       *string    `json:"phone" validate:"omitempty,max=20"`
	Address     *string    `json:"address"`
	DateOfBirth *time.Time `json:"date_of_birth"`
}

func (r UpdateProfileRequest) Apply(a Account) Account {
	setString(&a.FirstName, r.FirstName)
	setString(&a.LastName, r.LastName)
	setString(&a.Phone, r.Phone)
	setString(&a.Address, r.Address)
	if r.DateOfBirth != nil {
		a.DateOfBirth = r.DateOfBirth
	}
	return a
}

// UpdateAccountRequest is the owner-or-admin edit of /users/:id. Role and
// staff changes are honoured for admins only.
type UpdateAccountRequest struct {
	UpdateProfileRequest `json:",inline"`
	Email                *string `json:"email" validate:"omitempty,email,max=254"`
	Role                 *Role   `json:"role" validate:"omitempty,oneof=user admin"`
	IsStaff              *bool   `json:"is_staff"`
}

type AuthResponse struct {
	User    Account        `json:"user"`
	Tokens  auth.TokenPair `json:"tokens"`
	Message string         `json:"message"`
}

type AccessResponse struct {
	Access string `json:"access"`
}
