package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestInProcessStore_UnknownCredentialIsNotRevoked(t *testing.T) {
	s := NewInProcessStore(time.Minute)
	defer s.Stop()

	revoked, err := s.IsRevoked(context.Background(), "unknown")
	require.NoError(t, err)
	assert.False(t, revoked)
}

// Invariant 5 (spec §8): once Revoke is called, IsRevoked must report true
// before the credential's original expiry, regardless of the sweeper's
// cadence.
func TestInProcessStore_RevokedCredentialIsRevoked(t *testing.T) {
	s := NewInProcessStore(time.Minute)
	defer s.Stop()
	start := time.Now()
	s.now = func() time.Time { return start }

	require.NoError(t, s.Revoke(context.Background(), "cred-1", start.Add(time.Hour)))

	revoked, err := s.IsRevoked(context.Background(), "cred-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestInProcessStore_ExpiredRevocationIsTreatedAsNotRevoked(t *testing.T) {
	s := NewInProcessStore(time.Minute)
	defer s.Stop()
	start := time.Now()
	s.now = func() time.Time { return start }

	require.NoError(t, s.Revoke(context.Background(), "cred-1", start.Add(time.Second)))

	s.now = func() time.Time { return start.Add(2 * time.Second) }
	revoked, err := s.IsRevoked(context.Background(), "cred-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestInProcessStore_SweepRemovesExpiredRecords(t *testing.T) {
	s := NewInProcessStore(time.Minute)
	defer s.Stop()
	start := time.Now()
	s.now = func() time.Time { return start }
	require.NoError(t, s.Revoke(context.Background(), "cred-1", start.Add(time.Second)))

	s.now = func() time.Time { return start.Add(2 * time.Second) }
	s.sweep()

	_, loaded := s.records.Load("cred-1")
	assert.False(t, loaded, "sweep must remove records past their expiry")
}

func TestInProcessStore_Stop_IsIdempotent(t *testing.T) {
	s := NewInProcessStore(time.Minute)
	s.Stop()
	assert.NotPanics(t, s.Stop)
}
