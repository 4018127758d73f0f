package service

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/eshop-auth-api/internal/config"
	redisRepo "github.com/yourusername/eshop-auth-api/internal/repository/redis"
)

const testEmail = "alice@shop.com"

// newGuardTest wires an OtpGuardService to an in-process Redis.
func newGuardTest(t *testing.T) (*OtpGuardService, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cache, err := redisRepo.NewCacheRepo(client)
	require.NoError(t, err)

	guard, err := NewOtpGuardService(cache, config.OtpConfig{})
	require.NoError(t, err)
	return guard, mr
}

func TestNewOtpGuardService_NilCache(t *testing.T) {
	guard, err := NewOtpGuardService(nil, config.OtpConfig{})
	assert.Nil(t, guard)
	assert.Error(t, err)
}

func TestCheckIssuanceAllowed_NoRestrictions(t *testing.T) {
	guard, _ := newGuardTest(t)
	assert.NoError(t, guard.CheckIssuanceAllowed(testEmail))
}

func TestCheckIssuanceAllowed_Cooldown(t *testing.T) {
	guard, mr := newGuardTest(t)

	mr.Set(keyOtpCooldown.For(testEmail), "true")
	mr.SetTTL(keyOtpCooldown.For(testEmail), 60*time.Second)

	err := guard.CheckIssuanceAllowed(testEmail)
	assert.ErrorIs(t, err, ErrOtpCooldown)
}

func TestCheckIssuanceAllowed_SpamLock(t *testing.T) {
	guard, mr := newGuardTest(t)

	mr.Set(keyOtpSpamLock.For(testEmail), "locked")

	err := guard.CheckIssuanceAllowed(testEmail)
	assert.ErrorIs(t, err, ErrOtpSpamLocked)
}

func TestCheckIssuanceAllowed_HardLockWins(t *testing.T) {
	guard, mr := newGuardTest(t)

	// All three restrictions active: the hard lock must win.
	mr.Set(keyOtpLock.For(testEmail), "locked")
	mr.Set(keyOtpSpamLock.For(testEmail), "locked")
	mr.Set(keyOtpCooldown.For(testEmail), "true")

	err := guard.CheckIssuanceAllowed(testEmail)
	assert.ErrorIs(t, err, ErrOtpLocked)
}

func TestCheckIssuanceAllowed_SpamLockBeforeCooldown(t *testing.T) {
	guard, mr := newGuardTest(t)

	mr.Set(keyOtpSpamLock.For(testEmail), "locked")
	mr.Set(keyOtpCooldown.For(testEmail), "true")

	err := guard.CheckIssuanceAllowed(testEmail)
	assert.ErrorIs(t, err, ErrOtpSpamLocked)
}

func TestRecordIssuanceAttempt_CreatesCounterWithWindow(t *testing.T) {
	guard, mr := newGuardTest(t)

	require.NoError(t, guard.RecordIssuanceAttempt(testEmail))

	mr.CheckGet(t, keyOtpRequestCount.For(testEmail), "1")
	assert.Equal(t, 3600*time.Second, mr.TTL(keyOtpRequestCount.For(testEmail)))
}

func TestRecordIssuanceAttempt_IncrementKeepsWindow(t *testing.T) {
	guard, mr := newGuardTest(t)

	require.NoError(t, guard.RecordIssuanceAttempt(testEmail))

	// Half the window elapses before the second request.
	mr.FastForward(1800 * time.Second)
	require.NoError(t, guard.RecordIssuanceAttempt(testEmail))

	mr.CheckGet(t, keyOtpRequestCount.For(testEmail), "2")
	// Fixed window: the TTL keeps counting down from the first request.
	assert.Equal(t, 1800*time.Second, mr.TTL(keyOtpRequestCount.For(testEmail)))
}

func TestRecordIssuanceAttempt_SpamLockThreshold(t *testing.T) {
	guard, mr := newGuardTest(t)

	require.NoError(t, guard.RecordIssuanceAttempt(testEmail))
	require.NoError(t, guard.RecordIssuanceAttempt(testEmail))

	// Third request: spam lock engages, counter stays at 2.
	err := guard.RecordIssuanceAttempt(testEmail)
	assert.ErrorIs(t, err, ErrOtpSpamLocked)
	mr.CheckGet(t, keyOtpRequestCount.For(testEmail), "2")

	assert.True(t, mr.Exists(keyOtpSpamLock.For(testEmail)))
	assert.Equal(t, 3600*time.Second, mr.TTL(keyOtpSpamLock.For(testEmail)))
}

func TestRecordIssuanceAttempt_WindowExpiryResetsCount(t *testing.T) {
	guard, mr := newGuardTest(t)

	require.NoError(t, guard.RecordIssuanceAttempt(testEmail))
	require.NoError(t, guard.RecordIssuanceAttempt(testEmail))

	mr.FastForward(3601 * time.Second)

	require.NoError(t, guard.RecordIssuanceAttempt(testEmail))
	mr.CheckGet(t, keyOtpRequestCount.For(testEmail), "1")
}

func TestRecordVerificationFailure_AttemptsLeft(t *testing.T) {
	guard, mr := newGuardTest(t)

	mr.Set(keyOtpCode.For(testEmail), "4821")

	// First failure: 2 attempts left before the lock.
	left, err := guard.RecordVerificationFailure(testEmail)
	require.NoError(t, err)
	assert.Equal(t, 2, left)
	mr.CheckGet(t, keyOtpAttempts.For(testEmail), "1")
	assert.Equal(t, 300*time.Second, mr.TTL(keyOtpAttempts.For(testEmail)))

	// Second failure: 1 attempt left.
	left, err = guard.RecordVerificationFailure(testEmail)
	require.NoError(t, err)
	assert.Equal(t, 1, left)
	mr.CheckGet(t, keyOtpAttempts.For(testEmail), "2")
}

func TestRecordVerificationFailure_LockThreshold(t *testing.T) {
	guard, mr := newGuardTest(t)

	mr.Set(keyOtpCode.For(testEmail), "4821")

	_, err := guard.RecordVerificationFailure(testEmail)
	require.NoError(t, err)
	_, err = guard.RecordVerificationFailure(testEmail)
	require.NoError(t, err)

	// Third failure: hard lock engages, OTP and attempt keys removed together.
	_, err = guard.RecordVerificationFailure(testEmail)
	assert.ErrorIs(t, err, ErrOtpLocked)

	assert.True(t, mr.Exists(keyOtpLock.For(testEmail)))
	assert.Equal(t, 1800*time.Second, mr.TTL(keyOtpLock.For(testEmail)))
	assert.False(t, mr.Exists(keyOtpCode.For(testEmail)))
	assert.False(t, mr.Exists(keyOtpAttempts.For(testEmail)))
}

func TestClear_RemovesOtpState(t *testing.T) {
	guard, mr := newGuardTest(t)

	mr.Set(keyOtpCode.For(testEmail), "4821")
	mr.Set(keyOtpAttempts.For(testEmail), "1")

	require.NoError(t, guard.Clear(testEmail))

	assert.False(t, mr.Exists(keyOtpCode.For(testEmail)))
	assert.False(t, mr.Exists(keyOtpAttempts.For(testEmail)))
}

func TestGuard_IndependentIdentities(t *testing.T) {
	guard, mr := newGuardTest(t)

	mr.Set(keyOtpLock.For("bob@shop.com"), "locked")

	// Bob's lock never affects Alice.
	assert.NoError(t, guard.CheckIssuanceAllowed(testEmail))
	err := guard.CheckIssuanceAllowed("bob@shop.com")
	assert.ErrorIs(t, err, ErrOtpLocked)
}
