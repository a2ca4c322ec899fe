// Package auth is the identity collaborator: password hashing, token issue
// and verification, and wallet-identity generation. It produces the verified
// (subjectId, role, institutionId) triple the access policy runs on.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/openaudit/budgetledger/backend/pkg/apperr"
	"github.com/openaudit/budgetledger/backend/pkg/models"
)

const tokenTTL = 24 * time.Hour

// Claims is the verified identity bound into every bearer token.
type Claims struct {
	SubjectID     string      `json:"sub_id"`
	Role          models.Role `json:"role"`
	InstitutionID string      `json:"institution_id"`
	WalletAddress string      `json:"address"`
	jwt.RegisteredClaims
}

// Service signs and verifies tokens and checks passwords.
type Service struct {
	secret []byte
	issuer string
}

func NewService(secret, issuer string) *Service {
	return &Service{secret: []byte(secret), issuer: issuer}
}

// HashPassword produces a bcrypt hash of password.
func (s *Service) HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to hash password", err)
	}
	return string(h), nil
}

// ComparePassword reports whether password matches hash.
func (s *Service) ComparePassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IssueToken signs a 24h token for the given identity.
func (s *Service) IssueToken(subjectID string, role models.Role, institutionID, address string) (string, error) {
	now := time.Now()
	claims := &Claims{
		SubjectID:     subjectID,
		Role:          role,
		InstitutionID: institutionID,
		WalletAddress: address,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to sign token", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a bearer token.
func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.New(apperr.Unauthenticated, "unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperr.Wrap(apperr.Unauthenticated, "invalid or expired token", err)
	}
	return claims, nil
}

// NewWalletAddress generates a fresh 20-byte hex address for a new identity.
func NewWalletAddress() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to generate address", err)
	}
	return "0x" + hex.EncodeToString(b), nil
}

// NewCredentialSecret generates the auditor's 32-byte signing secret. It is
// persisted but never exported to callers.
func NewCredentialSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", apperr.Wrap(apperr.Internal, "failed to generate secret", err)
	}
	return hex.EncodeToString(b), nil
}
