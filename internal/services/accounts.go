package services

import (
	"errors"
	"fmt"
	"strings"

	"todolist/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AccountService interface {
	CreateUser(db *gorm.DB, input SignupInput) (*models.User, error)
	Authenticate(db *gorm.DB, username, password string) (*models.User, error)
}

type AccountServiceImpl struct {
	bcryptCost int
}

func NewAccountService(bcryptCost int) *AccountServiceImpl {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AccountServiceImpl{bcryptCost: bcryptCost}
}

func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func VerifyPassword(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}

func (s *AccountServiceImpl) CreateUser(db *gorm.DB, input SignupInput) (*models.User, error) {
	input, err := ValidateSignupInput(input)
	if err != nil {
		return nil, err
	}

	var existing models.User
	if err := db.Where("username = ?", input.Username).First(&existing).Error; err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up username: %w", err)
	}

	hashedPassword, err := HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		Username: input.Username,
		Password: hashedPassword,
	}
	if err := db.Create(&user).Error; err != nil {
		// a concurrent signup can win the race past the lookup above
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

// Authenticate returns ErrInvalidCredentials for an unknown username and for
// a wrong password alike. The username is trimmed the same way signup
// trims it.
func (s *AccountServiceImpl) Authenticate(db *gorm.DB, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)

	var user models.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !VerifyPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}
