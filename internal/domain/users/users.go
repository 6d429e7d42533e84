package users

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNameEmpty    = errors.New("user name is empty")
	ErrUserEmailEmpty   = errors.New("user email is empty")
	ErrUserEmailInvalid = errors.New("user email is invalid")
	ErrUserPasswdEmpty  = errors.New("user password is empty")
)

// Role controls access to the admin surface.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Balance      decimal.Decimal
	Role         Role
}

func NewUser(name, email, password string) (*User, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	if err := validatePassword(password); err != nil {
		return nil, err
	}

	passwordHash, err := getPasswordHash(password)
	if err != nil {
		return nil, fmt.Errorf("getPasswordHash: %w", err)
	}

	return &User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        strings.ToLower(email),
		PasswordHash: passwordHash,
		Balance:      decimal.Zero,
		Role:         RoleUser,
	}, nil
}

// CheckPassword compares a candidate password against the stored hash.
func (u *User) CheckPassword(password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return fmt.Errorf("bcrypt.CompareHashAndPassword: %w", err)
	}

	return nil
}

func getPasswordHash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt.GenerateFromPassword: %w", err)
	}

	return string(hash), nil
}

func ValidateEmail(email string) error {
	if email == "" {
		return ErrUserEmailEmpty
	}

	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ErrUserEmailInvalid
	}

	return nil
}

func validateName(name string) error {
	if name == "" {
		return ErrUserNameEmpty
	}

	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return ErrUserPasswdEmpty
	}

	return nil
}
