package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"github.com/yourusername/eshop-auth-api/internal/config"
	"github.com/yourusername/eshop-auth-api/internal/domain/repository"
	apperrors "github.com/yourusername/eshop-auth-api/internal/pkg/errors"
)

// OtpService owns the OTP lifecycle: generation, delivery, storage and
// verification. Callers are expected to have passed the guard's issuance
// checks before calling Issue.
type OtpService struct {
	cache        repository.CacheRepository
	guard        *OtpGuardService
	emailService EmailService
	cfg          config.OtpConfig
}

// NewOtpService creates the OTP lifecycle service.
func NewOtpService(
	cache repository.CacheRepository,
	guard *OtpGuardService,
	emailService EmailService,
	cfg config.OtpConfig,
) (*OtpService, error) {
	if cache == nil {
		return nil, fmt.Errorf("cache repository is required for OtpService")
	}
	if guard == nil {
		return nil, fmt.Errorf("otp guard is required for OtpService")
	}
	if emailService == nil {
		return nil, fmt.Errorf("email service is required for OtpService")
	}
	return &OtpService{
		cache:        cache,
		guard:        guard,
		emailService: emailService,
		cfg:          cfg,
	}, nil
}

// Issue generates a fresh 4-digit code, emails it and stores it under the
// identity's otp key. Re-issuing before the previous code expired overwrites
// it and resets its TTL; only the latest code ever verifies.
//
// The code is stored even when the email send fails, so an undelivered OTP
// can exist until its TTL runs out. The delivery error still propagates as
// ErrEmailDelivery so the caller can surface it.
//
// The cooldown sentinel is written with a conditional create so a concurrent
// issuance never shortens an already-running cooldown.
func (s *OtpService) Issue(ctx context.Context, name, email string) error {
	code, err := generateOtpCode()
	if err != nil {
		return fmt.Errorf("failed to generate otp code: %w", err)
	}

	sendErr := s.emailService.SendOtpEmail(ctx, email, name, code, "user-activation:"+uuid.NewString())

	if err := s.cache.Set(keyOtpCode.For(email), code, s.cfg.CodeTTL()); err != nil {
		return fmt.Errorf("failed to store otp code: %w", err)
	}
	if _, err := s.cache.SetNX(keyOtpCooldown.For(email), "true", s.cfg.Cooldown()); err != nil {
		return fmt.Errorf("failed to set otp cooldown: %w", err)
	}

	if sendErr != nil {
		return fmt.Errorf("%w: %v", ErrEmailDelivery, sendErr)
	}
	return nil
}

// Verify compares the submitted code with the stored one. Both sides are
// whitespace-trimmed first; the comparison itself is exact string equality.
// A mismatch is recorded through the guard, which either reports attempts
// left or engages the hard lock. A match clears the OTP state.
func (s *OtpService) Verify(ctx context.Context, email, submittedCode string) error {
	// The hard lock blocks verification outright, whatever code is submitted.
	locked, err := s.cache.Exists(keyOtpLock.For(email))
	if err != nil {
		return fmt.Errorf("failed to check otp lock: %w", err)
	}
	if locked {
		return ErrOtpLocked
	}

	storedCode, err := s.cache.Get(keyOtpCode.For(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return ErrOtpInvalidOrExpired
		}
		return fmt.Errorf("failed to read stored otp: %w", err)
	}

	stored := strings.TrimSpace(storedCode)
	submitted := strings.TrimSpace(submittedCode)
	if stored == "" {
		return ErrOtpInvalidOrExpired
	}

	if stored != submitted {
		attemptsLeft, failErr := s.guard.RecordVerificationFailure(email)
		if failErr != nil {
			return failErr
		}
		return &OtpMismatchError{AttemptsLeft: attemptsLeft}
	}

	if err := s.guard.Clear(email); err != nil {
		return err
	}
	return nil
}

// generateOtpCode returns a uniformly distributed 4-digit code in
// [1000, 9999], read from a cryptographically secure source.
func generateOtpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+1000), nil
}
