package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenService(t *testing.T, ttl time.Duration) *TokenService {
	t.Helper()
	return NewTokenService([]byte("test-secret"), ttl, NewMemoryDenylist())
}

func TestTokenService_RoundTrip(t *testing.T) {
	t.Parallel()

	svc := newTokenService(t, time.Hour)

	token, err := svc.Issue("user-123")
	require.NoError(t, err)

	userID, err := svc.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestTokenService_Verify_Expired(t *testing.T) {
	t.Parallel()

	svc := newTokenService(t, time.Hour)
	svc.ttl = -time.Minute // constructor clamps non-positive TTLs

	token, err := svc.Issue("user-123")
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_Verify_WrongSecret(t *testing.T) {
	t.Parallel()

	issuer := NewTokenService([]byte("right-secret"), time.Hour, NewMemoryDenylist())
	verifier := NewTokenService([]byte("wrong-secret"), time.Hour, NewMemoryDenylist())

	token, err := issuer.Issue("user-123")
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_Verify_Malformed(t *testing.T) {
	t.Parallel()

	svc := newTokenService(t, time.Hour)

	for _, encoded := range []string{"", "not.a.jwt", "a.b"} {
		_, err := svc.Verify(context.Background(), encoded)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestTokenService_Invalidate(t *testing.T) {
	t.Parallel()

	svc := newTokenService(t, time.Hour)
	ctx := context.Background()

	token, err := svc.Issue("user-123")
	require.NoError(t, err)

	_, err = svc.Verify(ctx, token)
	require.NoError(t, err)

	require.NoError(t, svc.Invalidate(ctx, token))

	// Signature and expiry are still nominally valid; the denylist must
	// reject it anyway, on every subsequent call.
	_, err = svc.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_Invalidate_OnlyAffectsThatToken(t *testing.T) {
	t.Parallel()

	svc := newTokenService(t, time.Hour)
	ctx := context.Background()

	first, err := svc.Issue("user-123")
	require.NoError(t, err)
	second, err := svc.Issue("user-123")
	require.NoError(t, err)

	require.NoError(t, svc.Invalidate(ctx, first))

	_, err = svc.Verify(ctx, first)
	assert.ErrorIs(t, err, ErrInvalidToken)

	userID, err := svc.Verify(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestTokenService_Invalidate_Idempotent(t *testing.T) {
	t.Parallel()

	svc := newTokenService(t, time.Hour)
	ctx := context.Background()

	token, err := svc.Issue("user-123")
	require.NoError(t, err)

	require.NoError(t, svc.Invalidate(ctx, token))
	require.NoError(t, svc.Invalidate(ctx, token))

	// Expired or garbage input is a no-op, not an error.
	expired := newTokenService(t, time.Hour)
	expired.ttl = -time.Minute
	staleToken, err := expired.Issue("user-123")
	require.NoError(t, err)
	assert.NoError(t, expired.Invalidate(ctx, staleToken))
	assert.NoError(t, svc.Invalidate(ctx, "not.a.jwt"))
}

func TestMemoryDenylist_ExpiredEntriesReadAsNotRevoked(t *testing.T) {
	t.Parallel()

	d := NewMemoryDenylist()
	ctx := context.Background()

	require.NoError(t, d.Revoke(ctx, "live", time.Now().UTC().Add(time.Hour)))
	require.NoError(t, d.Revoke(ctx, "stale", time.Now().UTC().Add(-time.Hour)))

	revoked, err := d.IsRevoked(ctx, "live")
	require.NoError(t, err)
	assert.True(t, revoked)

	// A stale entry reads as not revoked and is dropped from the map;
	// the signature expiry check rejects such tokens on its own.
	revoked, err = d.IsRevoked(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, revoked)
	assert.NotContains(t, d.expiry, "stale")
}

func TestMemoryDenylist_ConcurrentRevokeAndCheck(t *testing.T) {
	t.Parallel()

	d := NewMemoryDenylist()
	ctx := context.Background()
	expiresAt := time.Now().UTC().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = d.Revoke(ctx, "shared", expiresAt)
		}()
		go func() {
			defer wg.Done()
			_, _ = d.IsRevoked(ctx, "shared")
		}()
	}
	wg.Wait()

	// Revocation is monotonic: after all writers finish the id must read
	// as revoked.
	revoked, err := d.IsRevoked(ctx, "shared")
	require.NoError(t, err)
	assert.True(t, revoked)
}
