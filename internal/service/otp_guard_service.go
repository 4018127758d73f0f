package service

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/yourusername/eshop-auth-api/internal/config"
	"github.com/yourusername/eshop-auth-api/internal/domain/repository"
	apperrors "github.com/yourusername/eshop-auth-api/internal/pkg/errors"
)

// OtpGuardService gates OTP issuance and verification against three
// independent restriction classes: the hard lock (failed verifications),
// the spam lock (too many issuance requests) and the issuance cooldown.
// Each restriction lives in its own store key with its own TTL, so every
// class expires on its own schedule and no sweeper is needed.
//
// The service keeps no in-process state; every call is a fresh round-trip
// to the shared store, which lets the API scale horizontally. Check-then-act
// sequences (check restrictions, then record the attempt) are two separate
// round-trips, so concurrent duplicate requests for one identity can both
// pass the check. Accepted tradeoff for a single user's registration flow.
type OtpGuardService struct {
	cache repository.CacheRepository
	cfg   config.OtpConfig
}

// NewOtpGuardService creates the abuse-control service.
func NewOtpGuardService(cache repository.CacheRepository, cfg config.OtpConfig) (*OtpGuardService, error) {
	if cache == nil {
		return nil, fmt.Errorf("cache repository is required for OtpGuardService")
	}
	return &OtpGuardService{cache: cache, cfg: cfg}, nil
}

// CheckIssuanceAllowed reports whether a new OTP may be issued for the
// identity. Checks run in order hard lock -> spam lock -> cooldown and the
// first active restriction wins.
func (s *OtpGuardService) CheckIssuanceAllowed(email string) error {
	locked, err := s.cache.Exists(keyOtpLock.For(email))
	if err != nil {
		return fmt.Errorf("failed to check otp lock: %w", err)
	}
	if locked {
		return ErrOtpLocked
	}

	spamLocked, err := s.cache.Exists(keyOtpSpamLock.For(email))
	if err != nil {
		return fmt.Errorf("failed to check otp spam lock: %w", err)
	}
	if spamLocked {
		return ErrOtpSpamLocked
	}

	coolingDown, err := s.cache.Exists(keyOtpCooldown.For(email))
	if err != nil {
		return fmt.Errorf("failed to check otp cooldown: %w", err)
	}
	if coolingDown {
		return ErrOtpCooldown
	}

	return nil
}

// RecordIssuanceAttempt counts an issuance request within the fixed window.
// Once the configured limit is reached the spam lock engages and the counter
// stops growing; it recovers only when the lock key itself expires.
//
// The window TTL is set when the counter is created and never refreshed on
// increment: a fixed window from the first request, not a sliding one.
func (s *OtpGuardService) RecordIssuanceAttempt(email string) error {
	count, err := s.counterValue(keyOtpRequestCount.For(email))
	if err != nil {
		return fmt.Errorf("failed to read otp request count: %w", err)
	}

	if count >= s.cfg.Requests() {
		if err := s.cache.Set(keyOtpSpamLock.For(email), "locked", s.cfg.RequestWindow()); err != nil {
			return fmt.Errorf("failed to set otp spam lock: %w", err)
		}
		return ErrOtpSpamLocked
	}

	if count == 0 {
		if err := s.cache.Set(keyOtpRequestCount.For(email), 1, s.cfg.RequestWindow()); err != nil {
			return fmt.Errorf("failed to create otp request count: %w", err)
		}
		return nil
	}

	// INCR leaves the remaining TTL untouched.
	if _, err := s.cache.Increment(keyOtpRequestCount.For(email)); err != nil {
		return fmt.Errorf("failed to increment otp request count: %w", err)
	}
	return nil
}

// RecordVerificationFailure counts a failed verification attempt.
// When the failure limit is exceeded, the hard lock engages and both the OTP
// and the attempt counter are deleted together; the call then returns
// ErrOtpLocked. Otherwise it returns the number of attempts left before the
// lock (limit minus prior failures).
func (s *OtpGuardService) RecordVerificationFailure(email string) (int, error) {
	attempts, err := s.counterValue(keyOtpAttempts.For(email))
	if err != nil {
		return 0, fmt.Errorf("failed to read otp attempt count: %w", err)
	}

	if attempts >= s.cfg.Attempts() {
		if err := s.cache.Set(keyOtpLock.For(email), "locked", s.cfg.LockDuration()); err != nil {
			return 0, fmt.Errorf("failed to set otp lock: %w", err)
		}
		if err := s.cache.Delete(keyOtpCode.For(email), keyOtpAttempts.For(email)); err != nil {
			return 0, fmt.Errorf("failed to clear otp state on lock: %w", err)
		}
		return 0, ErrOtpLocked
	}

	if attempts == 0 {
		if err := s.cache.Set(keyOtpAttempts.For(email), 1, s.cfg.CodeTTL()); err != nil {
			return 0, fmt.Errorf("failed to create otp attempt count: %w", err)
		}
	} else {
		if _, err := s.cache.Increment(keyOtpAttempts.For(email)); err != nil {
			return 0, fmt.Errorf("failed to increment otp attempt count: %w", err)
		}
	}

	return s.cfg.Attempts() - attempts, nil
}

// Clear removes the stored OTP and the attempt counter together.
// Called after a successful verification.
func (s *OtpGuardService) Clear(email string) error {
	if err := s.cache.Delete(keyOtpCode.For(email), keyOtpAttempts.For(email)); err != nil {
		return fmt.Errorf("failed to clear otp state: %w", err)
	}
	return nil
}

// counterValue reads an integer counter key, treating absence as zero.
func (s *OtpGuardService) counterValue(key string) (int, error) {
	raw, err := s.cache.Get(key)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		// Corrupt counter value: treat as zero and start a fresh window.
		return 0, nil
	}
	return n, nil
}
