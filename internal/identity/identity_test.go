package identity

import (
	"database/sql"
	"testing"
	"time"

	"github.com/civictech/grievance-core/domain"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hashed, err := HashPassword("s3cret-passphrase")
	require.NoError(t, err)
	require.NotEqual(t, "s3cret-passphrase", hashed)

	require.NoError(t, CheckPassword("s3cret-passphrase", hashed))
	require.Error(t, CheckPassword("wrong-passphrase", hashed))
}

func TestIssueAndParseToken_RoundTrip(t *testing.T) {
	secret := []byte("test-signing-secret")
	claims := Claims{
		UserID:       42,
		Role:         domain.RoleDeptHead,
		DepartmentID: sql.NullInt64{Int64: 9, Valid: true},
	}

	token, err := IssueToken(claims, secret, time.Hour)
	require.NoError(t, err)

	caller, err := ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, int64(42), caller.UserID.Int64)
	require.Equal(t, domain.RoleDeptHead, caller.Role)
	require.True(t, caller.DepartmentID.Valid)
	require.Equal(t, int64(9), caller.DepartmentID.Int64)
	require.False(t, caller.IsSystem())
}

func TestParseToken_CitizenHasNoDepartment(t *testing.T) {
	secret := []byte("test-signing-secret")
	token, err := IssueToken(Claims{UserID: 7, Role: domain.RoleCitizen}, secret, time.Hour)
	require.NoError(t, err)

	caller, err := ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, domain.RoleCitizen, caller.Role)
	require.False(t, caller.DepartmentID.Valid)
}

func TestParseToken_WrongSecretRejected(t *testing.T) {
	token, err := IssueToken(Claims{UserID: 42, Role: domain.RoleCitizen}, []byte("right-secret"), time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, []byte("wrong-secret"))
	require.Error(t, err)
}

func TestParseToken_ExpiredRejected(t *testing.T) {
	secret := []byte("test-signing-secret")
	token, err := IssueToken(Claims{UserID: 42, Role: domain.RoleCitizen}, secret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, secret)
	require.Error(t, err)
}
