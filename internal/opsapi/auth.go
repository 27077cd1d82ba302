package opsapi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Operator tokens gate mutating actions such as resetting halted threads.
// Message flow itself never depends on them.

const operatorTokenTTL = 24 * time.Hour

var (
	// ErrEmptyOperator is returned when a token is requested for no operator.
	ErrEmptyOperator = errors.New("operator cannot be empty")
	// ErrEmptyToken is returned when no token accompanies a request.
	ErrEmptyToken = errors.New("token cannot be empty")
)

// OperatorClaims is the signed payload of an operator token.
type OperatorClaims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// JWTAuth signs and verifies operator tokens with a shared HMAC key.
type JWTAuth struct {
	secretKey []byte
}

// NewJWTAuth creates a token signer/verifier over the given key.
func NewJWTAuth(secretKey string) *JWTAuth {
	return &JWTAuth{secretKey: []byte(secretKey)}
}

// GenerateToken issues a token identifying the operator, valid for 24 hours.
func (j *JWTAuth) GenerateToken(operator string) (string, time.Time, error) {
	if operator == "" {
		return "", time.Time{}, ErrEmptyOperator
	}

	now := time.Now()
	expiresAt := now.Add(operatorTokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, OperatorClaims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken verifies a token, with or without its "Bearer " prefix, and
// returns the operator claims it carries.
func (j *JWTAuth) ValidateToken(tokenString string) (*OperatorClaims, error) {
	if tokenString == "" {
		return nil, ErrEmptyToken
	}
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, j.keyFor)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*OperatorClaims)
	if !ok || !token.Valid {
		return nil, errors.New("token rejected")
	}
	return claims, nil
}

// keyFor hands the HMAC key to the parser after pinning the signing method,
// so a token signed with "none" or an asymmetric scheme cannot slip through.
func (j *JWTAuth) keyFor(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return j.secretKey, nil
}
