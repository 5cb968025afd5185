package token

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory TokenStore with the same consume-once semantics
// as the SQL implementation.
type memStore struct {
	mu     sync.Mutex
	nextID int
	tokens []*VerificationToken
}

func (m *memStore) Create(_ context.Context, userID string, purpose Purpose, tokenHash string, expiresAt time.Time) (*VerificationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t := &VerificationToken{
		ID:        fmt.Sprintf("tok-%d", m.nextID),
		UserID:    userID,
		Purpose:   purpose,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	m.tokens = append(m.tokens, t)
	return t, nil
}

func (m *memStore) Consume(_ context.Context, tokenHash string, purpose Purpose, now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.TokenHash == tokenHash && t.Purpose == purpose && t.UsedAt == nil && t.ExpiresAt.After(now) {
			used := now
			t.UsedAt = &used
			return t.UserID, nil
		}
	}
	return "", ErrInvalid
}

func (m *memStore) DeleteActive(_ context.Context, userID string, purpose Purpose) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*VerificationToken
	var n int64
	for _, t := range m.tokens {
		if t.UserID == userID && t.Purpose == purpose && t.UsedAt == nil {
			n++
			continue
		}
		kept = append(kept, t)
	}
	m.tokens = kept
	return n, nil
}

func (m *memStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*VerificationToken
	var n int64
	for _, t := range m.tokens {
		if !t.ExpiresAt.After(now) {
			n++
			continue
		}
		kept = append(kept, t)
	}
	m.tokens = kept
	return n, nil
}

func newTestService(store TokenStore, now func() time.Time) *Service {
	s := NewService(store)
	if now != nil {
		s.now = now
	}
	return s
}

func TestNewRawFormat(t *testing.T) {
	raw := NewRaw()
	parts := strings.Split(raw, ".")
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 36)
	assert.Len(t, parts[1], 36)
}

func TestNewRawNeverRepeats(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		raw := NewRaw()
		require.False(t, seen[raw], "duplicate raw token: %s", raw)
		seen[raw] = true
	}
}

func TestHash(t *testing.T) {
	h1 := Hash("some-token")
	h2 := Hash("some-token")
	assert.Equal(t, h1, h2, "hash must be deterministic")
	assert.Len(t, h1, 64, "sha-256 hex digest is 64 chars")
	assert.Equal(t, strings.ToLower(h1), h1, "digest must be lowercase hex")
	assert.NotEqual(t, h1, Hash("other-token"))
}

func TestIssueAndConsume(t *testing.T) {
	svc := newTestService(&memStore{}, nil)
	ctx := context.Background()

	raw, err := svc.Issue(ctx, "user-1", PurposeEmailVerify, 10*time.Minute)
	require.NoError(t, err)

	userID, err := svc.Consume(ctx, raw, PurposeEmailVerify)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	// Second consumption of the same raw token fails uniformly.
	_, err = svc.Consume(ctx, raw, PurposeEmailVerify)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestConsumeWrongPurpose(t *testing.T) {
	svc := newTestService(&memStore{}, nil)
	ctx := context.Background()

	raw, err := svc.Issue(ctx, "user-1", PurposeEmailVerify, 10*time.Minute)
	require.NoError(t, err)

	_, err = svc.Consume(ctx, raw, PurposePasswordReset)
	assert.ErrorIs(t, err, ErrInvalid)

	// The token is still consumable under its real purpose.
	userID, err := svc.Consume(ctx, raw, PurposeEmailVerify)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestConsumeUnknownToken(t *testing.T) {
	svc := newTestService(&memStore{}, nil)

	_, err := svc.Consume(context.Background(), NewRaw(), PurposeEmailVerify)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestExpiryBoundary(t *testing.T) {
	// Freeze the clock so expires_at == now exactly; strict > means the
	// token is already expired.
	frozen := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(&memStore{}, func() time.Time { return frozen })

	raw, err := svc.Issue(context.Background(), "user-1", PurposePasswordReset, 0)
	require.NoError(t, err)

	_, err = svc.Consume(context.Background(), raw, PurposePasswordReset)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestIssueInvalidatesPrior(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store, nil)
	ctx := context.Background()

	first, err := svc.Issue(ctx, "user-1", PurposeEmailVerify, time.Hour)
	require.NoError(t, err)
	second, err := svc.Issue(ctx, "user-1", PurposeEmailVerify, time.Hour)
	require.NoError(t, err)

	_, err = svc.Consume(ctx, first, PurposeEmailVerify)
	assert.ErrorIs(t, err, ErrInvalid, "older token must be invalidated by reissue")

	userID, err := svc.Consume(ctx, second, PurposeEmailVerify)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestIssueKeepsOtherPurposes(t *testing.T) {
	svc := newTestService(&memStore{}, nil)
	ctx := context.Background()

	reset, err := svc.Issue(ctx, "user-1", PurposePasswordReset, time.Hour)
	require.NoError(t, err)
	_, err = svc.Issue(ctx, "user-1", PurposeEmailVerify, time.Hour)
	require.NoError(t, err)

	userID, err := svc.Consume(ctx, reset, PurposePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestConcurrentConsumeSingleSuccess(t *testing.T) {
	svc := newTestService(&memStore{}, nil)
	ctx := context.Background()

	raw, err := svc.Issue(ctx, "user-1", PurposeGroupInvite, time.Hour)
	require.NoError(t, err)

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Consume(ctx, raw, PurposeGroupInvite)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, ErrInvalid)
		}
	}
	assert.Equal(t, 1, successes, "exactly one concurrent consumer may win")
}

func TestPurgeExpired(t *testing.T) {
	store := &memStore{}
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(store, func() time.Time { return clock })
	ctx := context.Background()

	_, err := svc.Issue(ctx, "user-1", PurposeEmailVerify, time.Minute)
	require.NoError(t, err)
	raw, err := svc.Issue(ctx, "user-2", PurposeEmailVerify, time.Hour)
	require.NoError(t, err)

	// Advance past the first token's expiry but not the second's.
	clock = clock.Add(30 * time.Minute)
	svc.now = func() time.Time { return clock }

	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	userID, err := svc.Consume(ctx, raw, PurposeEmailVerify)
	require.NoError(t, err)
	assert.Equal(t, "user-2", userID)
}
