package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/yourusername/eshop-auth-api/internal/domain/entity"
	"github.com/yourusername/eshop-auth-api/internal/domain/repository"
	apperrors "github.com/yourusername/eshop-auth-api/internal/pkg/errors"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// RegistrationInput carries the raw registration fields.
type RegistrationInput struct {
	Name        string
	Email       string
	Password    string
	PhoneNumber string
	Country     string
}

// VerificationInput carries the fields of the final verification step.
type VerificationInput struct {
	Name        string
	Email       string
	Otp         string
	Password    string
	Role        string
	PhoneNumber string
	Country     string
}

// AuthService orchestrates the registration flow: shape validation,
// duplicate checks, OTP issuance gating and final record creation.
type AuthService struct {
	userRepo   repository.UserRepository
	otpGuard   *OtpGuardService
	otpService *OtpService
}

// NewAuthService creates a new registration service.
func NewAuthService(
	userRepo repository.UserRepository,
	otpGuard *OtpGuardService,
	otpService *OtpService,
) (*AuthService, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("user repository is required for AuthService")
	}
	if otpGuard == nil {
		return nil, fmt.Errorf("otp guard is required for AuthService")
	}
	if otpService == nil {
		return nil, fmt.Errorf("otp service is required for AuthService")
	}
	return &AuthService{
		userRepo:   userRepo,
		otpGuard:   otpGuard,
		otpService: otpService,
	}, nil
}

// ValidateRegistrationData checks the raw registration fields for the given
// role. Sellers additionally need a phone number and a country.
func ValidateRegistrationData(input RegistrationInput, role string) error {
	if input.Name == "" || input.Email == "" || input.Password == "" {
		return fmt.Errorf("%w: missing required fields", apperrors.ErrValidation)
	}
	if role == entity.RoleSeller && (input.PhoneNumber == "" || input.Country == "") {
		return fmt.Errorf("%w: missing required fields", apperrors.ErrValidation)
	}
	if !emailRegex.MatchString(input.Email) {
		return fmt.Errorf("%w: invalid email format", apperrors.ErrValidation)
	}
	return nil
}

// RequestRegistration starts a registration: validates the payload, rejects
// already-registered emails, consults the abuse-control guard and issues an
// OTP to the given address.
func (s *AuthService) RequestRegistration(ctx context.Context, input RegistrationInput, role string) error {
	if err := ValidateRegistrationData(input, role); err != nil {
		return err
	}
	email := normalizeEmail(input.Email)

	if _, err := s.userRepo.GetByEmail(email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("failed to check existing user: %w", err)
	}

	if err := s.otpGuard.CheckIssuanceAllowed(email); err != nil {
		return err
	}
	if err := s.otpGuard.RecordIssuanceAttempt(email); err != nil {
		return err
	}

	if err := s.otpService.Issue(ctx, strings.TrimSpace(input.Name), email); err != nil {
		return err
	}

	log.Printf("[AuthService] OTP issued for %s registration email=%s", role, email)
	return nil
}

// VerifyRegistration completes a registration: verifies the submitted OTP
// and persists the user with a bcrypt-hashed password.
func (s *AuthService) VerifyRegistration(ctx context.Context, input VerificationInput) (*entity.User, error) {
	if input.Email == "" || input.Otp == "" || input.Password == "" || input.Name == "" {
		return nil, fmt.Errorf("%w: email, OTP, name and password are required", apperrors.ErrValidation)
	}
	email := normalizeEmail(input.Email)

	if _, err := s.userRepo.GetByEmail(email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	if err := s.otpService.Verify(ctx, email, input.Otp); err != nil {
		return nil, err
	}

	role := input.Role
	if role != entity.RoleSeller {
		role = entity.RoleUser
	}
	if role == entity.RoleSeller && (input.PhoneNumber == "" || input.Country == "") {
		return nil, fmt.Errorf("%w: phone_number and country are required for sellers", apperrors.ErrValidation)
	}

	now := time.Now()
	user := &entity.User{
		Name:            strings.TrimSpace(input.Name),
		Email:           email,
		Password:        input.Password, // hashed by the entity's BeforeSave hook
		Role:            role,
		PhoneNumber:     input.PhoneNumber,
		Country:         input.Country,
		EmailVerifiedAt: &now,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("[AuthService] User ID=%d (%s) registered successfully", user.ID, user.Email)
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
