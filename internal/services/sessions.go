package services

import (
	"errors"
	"fmt"
	"time"

	"todolist/internal/models"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

const sessionIssuer = "todolist"

type SessionService interface {
	Login(db *gorm.DB, userID uuid.UUID) (string, time.Time, error)
	Resolve(db *gorm.DB, token string) (models.Principal, error)
	Logout(db *gorm.DB, token string) error
	PurgeExpired(db *gorm.DB) (int64, error)
}

type SessionServiceImpl struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

func NewSessionService(secret string, ttl time.Duration) *SessionServiceImpl {
	return &SessionServiceImpl{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock replaces the time source; tests use it to expire sessions.
func (s *SessionServiceImpl) WithClock(now func() time.Time) *SessionServiceImpl {
	s.now = now
	return s
}

// Login persists a new session row and returns the signed cookie value.
func (s *SessionServiceImpl) Login(db *gorm.DB, userID uuid.UUID) (string, time.Time, error) {
	sessionID, err := uuid.NewV4()
	if err != nil {
		return "", time.Time{}, err
	}

	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.ttl)

	session := models.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: issuedAt,
	}
	if err := db.Create(&session).Error; err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create session: %w", err)
	}

	claims := sessionClaims{
		SessionID: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	return token, expiresAt, nil
}

func (s *SessionServiceImpl) parse(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	},
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrSessionNotFound
	}
	return claims, nil
}

// Resolve maps a cookie value to the Principal it was issued for. Any
// invalid, expired, revoked or orphaned token yields ErrSessionNotFound.
func (s *SessionServiceImpl) Resolve(db *gorm.DB, token string) (models.Principal, error) {
	claims, err := s.parse(token)
	if err != nil {
		return models.Principal{}, err
	}

	sessionID := uuid.FromStringOrNil(claims.SessionID)
	userID := uuid.FromStringOrNil(claims.Subject)
	if sessionID == uuid.Nil || userID == uuid.Nil {
		return models.Principal{}, ErrSessionNotFound
	}

	var session models.Session
	err = db.Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Principal{}, ErrSessionNotFound
		}
		return models.Principal{}, fmt.Errorf("failed to load session: %w", err)
	}
	if session.IsExpired(s.now()) {
		return models.Principal{}, ErrSessionNotFound
	}

	var user models.User
	if err := db.Select("id", "username").Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Principal{}, ErrSessionNotFound
		}
		return models.Principal{}, fmt.Errorf("failed to load session user: %w", err)
	}

	return models.Principal{
		UserID:    user.ID,
		Username:  user.Username,
		SessionID: session.ID,
	}, nil
}

// Logout deletes the session behind token. Unknown or invalid tokens are
// not an error: the browser ends up signed out either way.
func (s *SessionServiceImpl) Logout(db *gorm.DB, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return nil
	}
	sessionID := uuid.FromStringOrNil(claims.SessionID)
	if sessionID == uuid.Nil {
		return nil
	}
	if err := db.Where("id = ?", sessionID).Delete(&models.Session{}).Error; err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *SessionServiceImpl) PurgeExpired(db *gorm.DB) (int64, error) {
	result := db.Where("expires_at <= ?", s.now().UTC()).Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge expired sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
