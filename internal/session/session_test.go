package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(time.Second)

	a := m.New()
	b := m.New()
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.Cart.IsEmpty())
	assert.NotSame(t, a.Cart, b.Cart, "carts must not be shared between sessions")
	assert.Equal(t, 2, m.Len())

	got, err := m.Get(a.ID)
	require.NoError(t, err)
	assert.Same(t, a, got)

	_, err = m.Get(uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	m.Delete(a.ID)
	_, err = m.Get(a.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 1, m.Len())
}

func TestManagerExpire(t *testing.T) {
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	m := NewManager(time.Second)
	m.now = func() time.Time { return now }

	stale := m.New()
	now = now.Add(time.Hour)
	fresh := m.New()

	now = now.Add(30 * time.Minute)
	removed := m.Expire(time.Hour)
	assert.Equal(t, 1, removed)

	_, err := m.Get(stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestGetRefreshesLastSeen(t *testing.T) {
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	m := NewManager(time.Second)
	m.now = func() time.Time { return now }

	s := m.New()
	now = now.Add(50 * time.Minute)
	_, err := m.Get(s.ID)
	require.NoError(t, err)

	now = now.Add(50 * time.Minute)
	assert.Equal(t, 0, m.Expire(time.Hour))
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	s := NewManager(time.Second).New()
	ctx := WithSession(context.Background(), s)
	assert.Same(t, s, FromContext(ctx))
}
