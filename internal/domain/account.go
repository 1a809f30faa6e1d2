package domain

import (
	"strings"
	"time"
)

type Account struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Age          *int      `json:"age,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Public returns a copy of the account without its credential.
func (a Account) Public() Account {
	a.PasswordHash = ""
	return a
}

type RegisterRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	Phone     string `json:"phone" binding:"required"`
	Age       *int   `json:"age" binding:"omitempty,min=0"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	User  Account `json:"user"`
	Token string  `json:"token"`
}

// AccountPatch carries the fields of a profile edit; nil fields are left
// untouched.
type AccountPatch struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email" binding:"omitempty,email"`
	Phone     *string `json:"phone"`
	Age       *int    `json:"age" binding:"omitempty,min=0"`
	Password  *string `json:"password" binding:"omitempty,min=6"`
}

// NormalizeEmail lower-cases and trims an address so uniqueness is
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func NormalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}
