// Package identity provides the caller-authentication utilities
// surrounding domain.CallerContext construction: password hashing for
// officer/admin accounts, and session-token issuance/parsing so an outer
// request layer can turn a bearer token back into the CallerContext every
// core operation takes.
package identity

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/civictech/grievance-core/domain"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password for storage.
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

// CheckPassword reports whether plain matches the stored bcrypt hash.
func CheckPassword(plain, hashed string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// Claims is the payload embedded in a session token: enough to reconstruct
// a domain.CallerContext without a database round trip.
type Claims struct {
	UserID       int64
	Role         domain.Role
	DepartmentID sql.NullInt64
}

// IssueToken mints a signed session token for any role; citizen and
// authority callers differ only in the Role claim.
func IssueToken(claims Claims, secret []byte, expiresIn time.Duration) (string, error) {
	now := time.Now()
	mapClaims := jwt.MapClaims{
		"user_id": claims.UserID,
		"role":    string(claims.Role),
		"exp":     now.Add(expiresIn).Unix(),
		"iat":     now.Unix(),
	}
	if claims.DepartmentID.Valid {
		mapClaims["department_id"] = claims.DepartmentID.Int64
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies and decodes a session token into a
// domain.CallerContext.
func ParseToken(tokenString string, secret []byte) (domain.CallerContext, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil || !token.Valid {
		return domain.CallerContext{}, fmt.Errorf("invalid session token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.CallerContext{}, fmt.Errorf("malformed token claims")
	}

	userIDFloat, _ := claims["user_id"].(float64)
	roleStr, _ := claims["role"].(string)

	caller := domain.CallerContext{
		UserID: sql.NullInt64{Int64: int64(userIDFloat), Valid: true},
		Role:   domain.Role(roleStr),
	}
	if deptFloat, ok := claims["department_id"].(float64); ok {
		caller.DepartmentID = sql.NullInt64{Int64: int64(deptFloat), Valid: true}
	}
	return caller, nil
}
