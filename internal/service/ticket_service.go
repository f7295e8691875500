package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Ticket errors.
var (
	ErrTicketInvalid = errors.New("invalid session ticket")
	ErrTicketExpired = errors.New("session ticket expired")
)

// TicketClaims binds a bearer to one quiz session.
type TicketClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// TicketService issues and validates session tickets. A ticket is the only
// credential a quiz session has: whoever holds it drives the session.
type TicketService struct {
	secret []byte
	expiry time.Duration
}

// NewTicketService creates a new TicketService.
func NewTicketService(secret string, expiry time.Duration) *TicketService {
	return &TicketService{secret: []byte(secret), expiry: expiry}
}

// Issue signs a ticket for sessionID.
func (s *TicketService) Issue(sessionID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.expiry)

	claims := TicketClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign ticket: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses a ticket and returns its claims.
func (s *TicketService) Validate(tokenStr string) (*TicketClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &TicketClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTicketExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTicketInvalid, err)
	}

	claims, ok := token.Claims.(*TicketClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, ErrTicketInvalid
	}
	return claims, nil
}
