package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTSessionService implements ports.SessionService using HS256 JWT. A form
// session token is issued when the hosted form is rendered and must accompany
// the card submit, binding the POST to the rendered payment.
type JWTSessionService struct {
	secret []byte
	issuer string
}

// NewJWTSessionService creates a new form session service.
func NewJWTSessionService(secret, issuer string) *JWTSessionService {
	return &JWTSessionService{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// IssueFormSession creates a signed session token for the payment.
func (s *JWTSessionService) IssueFormSession(paymentID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": paymentID,
		"aud": "payment-form",
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"iss": s.issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing form session: %w", err)
	}
	return signed, nil
}

// ValidateFormSession verifies the token and returns the bound payment id.
func (s *JWTSessionService) ValidateFormSession(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithAudience("payment-form"), jwt.WithIssuer(s.issuer))
	if err != nil {
		return "", fmt.Errorf("parsing form session: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid form session claims")
	}

	paymentID, ok := claims["sub"].(string)
	if !ok || paymentID == "" {
		return "", fmt.Errorf("missing payment id in form session")
	}
	return paymentID, nil
}
