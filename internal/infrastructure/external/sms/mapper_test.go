package sms

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sms-hub/sms-dashboard/internal/domain/roster"
)

func TestMapper_EvictionRoundTrip(t *testing.T) {
	m := NewMapper()

	st, err := m.StudentFromDTO(&StudentDTO{ID: 3, Name: "  Chitra (evicted) ", Email: " c@x.org "})
	require.NoError(t, err)
	assert.Equal(t, "Chitra", st.Name)
	assert.Equal(t, "c@x.org", st.Email)
	assert.Equal(t, roster.LifecycleEvicted, st.Lifecycle)

	req := m.StudentRequestFromDraft(st.Draft())
	assert.Equal(t, "Chitra (evicted)", req.Name)
	assert.Nil(t, req.Course)

	again, err := m.StudentFromDTO(&StudentDTO{ID: 3, Name: req.Name})
	require.NoError(t, err)
	assert.Equal(t, st.Name, again.Name)
	assert.True(t, again.IsEvicted())
}

func TestMapper_NilDTO(t *testing.T) {
	m := NewMapper()

	_, err := m.StudentFromDTO(nil)
	assert.ErrorIs(t, err, ErrNilDTO)

	_, err = m.MarksDetailFromDTO(nil)
	assert.ErrorIs(t, err, ErrNilDTO)
}

func TestMapper_MarksDetailStripsMarker(t *testing.T) {
	d, err := NewMapper().MarksDetailFromDTO(&MarksDetailDTO{StudentID: 1, StudentName: "Ravi (evicted)"})
	require.NoError(t, err)
	assert.Equal(t, "Ravi", d.StudentName)
	assert.Empty(t, d.Entries)
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 2})
	rl.now = func() time.Time { return now }
	rl.lastRefill = now

	assert.True(t, rl.TryAllow())
	assert.True(t, rl.TryAllow())
	assert.False(t, rl.TryAllow())

	now = now.Add(time.Second)
	assert.True(t, rl.TryAllow())

	rl.RecordRateLimitHit(10 * time.Second)
	now = now.Add(5 * time.Second)
	assert.False(t, rl.TryAllow())

	now = now.Add(6 * time.Second)
	assert.True(t, rl.TryAllow())

	rl.Reset()
	assert.Equal(t, 2.0, rl.Status().AvailableTokens)
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{})
	assert.False(t, rl.Enabled())
	for range 100 {
		assert.True(t, rl.TryAllow())
	}
	assert.NoError(t, rl.Wait(t.Context()))
}

func TestRateLimiter_WaitTimeout(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 0.001, BurstSize: 1, WaitTimeout: time.Millisecond})
	require.NoError(t, rl.Wait(t.Context()))

	err := rl.Wait(t.Context())
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.True(t, rle.Local)
	assert.False(t, isTransient(err))
}
