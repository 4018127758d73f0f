package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/eshop-auth-api/internal/config"
	"github.com/yourusername/eshop-auth-api/internal/domain/entity"
	apperrors "github.com/yourusername/eshop-auth-api/internal/pkg/errors"
	redisRepo "github.com/yourusername/eshop-auth-api/internal/repository/redis"
)

// MockUserRepository implements repository.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(id uint) (*entity.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(email string) (*entity.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) List(limit, offset int) ([]entity.User, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.User), args.Error(1)
}

type authTestDeps struct {
	authService  *AuthService
	userRepo     *MockUserRepository
	emailService *MockEmailService
	mr           *miniredis.Miniredis
}

func newAuthTest(t *testing.T) *authTestDeps {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cache, err := redisRepo.NewCacheRepo(client)
	require.NoError(t, err)

	guard, err := NewOtpGuardService(cache, config.OtpConfig{})
	require.NoError(t, err)

	emailService := new(MockEmailService)
	otpService, err := NewOtpService(cache, guard, emailService, config.OtpConfig{})
	require.NoError(t, err)

	userRepo := new(MockUserRepository)
	authService, err := NewAuthService(userRepo, guard, otpService)
	require.NoError(t, err)

	return &authTestDeps{
		authService:  authService,
		userRepo:     userRepo,
		emailService: emailService,
		mr:           mr,
	}
}

func validInput() RegistrationInput {
	return RegistrationInput{
		Name:     "Alice",
		Email:    testEmail,
		Password: "secret123",
	}
}

func TestValidateRegistrationData(t *testing.T) {
	tests := []struct {
		name    string
		input   RegistrationInput
		role    string
		wantErr bool
	}{
		{
			name:  "valid user",
			input: RegistrationInput{Name: "Alice", Email: "alice@shop.com", Password: "secret123"},
			role:  entity.RoleUser,
		},
		{
			name: "valid seller",
			input: RegistrationInput{
				Name: "Bob", Email: "bob@shop.com", Password: "secret123",
				PhoneNumber: "+77001234567", Country: "Kazakhstan",
			},
			role: entity.RoleSeller,
		},
		{
			name:    "missing name",
			input:   RegistrationInput{Email: "alice@shop.com", Password: "secret123"},
			role:    entity.RoleUser,
			wantErr: true,
		},
		{
			name:    "missing password",
			input:   RegistrationInput{Name: "Alice", Email: "alice@shop.com"},
			role:    entity.RoleUser,
			wantErr: true,
		},
		{
			name:    "seller without phone",
			input:   RegistrationInput{Name: "Bob", Email: "bob@shop.com", Password: "secret123", Country: "Kazakhstan"},
			role:    entity.RoleSeller,
			wantErr: true,
		},
		{
			name:    "seller without country",
			input:   RegistrationInput{Name: "Bob", Email: "bob@shop.com", Password: "secret123", PhoneNumber: "+77001234567"},
			role:    entity.RoleSeller,
			wantErr: true,
		},
		{
			name:    "invalid email format",
			input:   RegistrationInput{Name: "Alice", Email: "not-an-email", Password: "secret123"},
			role:    entity.RoleUser,
			wantErr: true,
		},
		{
			name:    "email without tld",
			input:   RegistrationInput{Name: "Alice", Email: "alice@shop", Password: "secret123"},
			role:    entity.RoleUser,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegistrationData(tt.input, tt.role)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequestRegistration_Success(t *testing.T) {
	deps := newAuthTest(t)

	deps.userRepo.On("GetByEmail", testEmail).Return(nil, apperrors.ErrNotFound).Once()
	deps.emailService.On("SendOtpEmail", mock.Anything, testEmail, "Alice", mock.Anything, mock.Anything).
		Return(nil).Once()

	err := deps.authService.RequestRegistration(context.Background(), validInput(), entity.RoleUser)
	require.NoError(t, err)

	assert.True(t, deps.mr.Exists(keyOtpCode.For(testEmail)))
	assert.True(t, deps.mr.Exists(keyOtpCooldown.For(testEmail)))
	deps.mr.CheckGet(t, keyOtpRequestCount.For(testEmail), "1")

	deps.userRepo.AssertExpectations(t)
	deps.emailService.AssertExpectations(t)
}

func TestRequestRegistration_EmailTaken(t *testing.T) {
	deps := newAuthTest(t)

	deps.userRepo.On("GetByEmail", testEmail).
		Return(&entity.User{ID: 1, Email: testEmail}, nil).Once()

	err := deps.authService.RequestRegistration(context.Background(), validInput(), entity.RoleUser)
	assert.ErrorIs(t, err, ErrEmailTaken)

	// No OTP state was touched.
	assert.False(t, deps.mr.Exists(keyOtpCode.For(testEmail)))
	assert.False(t, deps.mr.Exists(keyOtpRequestCount.For(testEmail)))
}

func TestRequestRegistration_CooldownBlocksSecondRequest(t *testing.T) {
	deps := newAuthTest(t)

	deps.userRepo.On("GetByEmail", testEmail).Return(nil, apperrors.ErrNotFound).Twice()
	deps.emailService.On("SendOtpEmail", mock.Anything, testEmail, "Alice", mock.Anything, mock.Anything).
		Return(nil).Once()

	require.NoError(t, deps.authService.RequestRegistration(context.Background(), validInput(), entity.RoleUser))

	// Immediate retry hits the 60 second cooldown.
	err := deps.authService.RequestRegistration(context.Background(), validInput(), entity.RoleUser)
	assert.ErrorIs(t, err, ErrOtpCooldown)
}

func TestRequestRegistration_SpamLockOnThirdRequest(t *testing.T) {
	deps := newAuthTest(t)

	deps.userRepo.On("GetByEmail", testEmail).Return(nil, apperrors.ErrNotFound).Times(3)
	deps.emailService.On("SendOtpEmail", mock.Anything, testEmail, "Alice", mock.Anything, mock.Anything).
		Return(nil).Twice()

	require.NoError(t, deps.authService.RequestRegistration(context.Background(), validInput(), entity.RoleUser))

	// Wait out the cooldown between requests; stay inside the count window.
	deps.mr.FastForward(61 * time.Second)
	require.NoError(t, deps.authService.RequestRegistration(context.Background(), validInput(), entity.RoleUser))

	deps.mr.FastForward(61 * time.Second)
	err := deps.authService.RequestRegistration(context.Background(), validInput(), entity.RoleUser)
	assert.ErrorIs(t, err, ErrOtpSpamLocked)

	assert.True(t, deps.mr.Exists(keyOtpSpamLock.For(testEmail)))
	deps.mr.CheckGet(t, keyOtpRequestCount.For(testEmail), "2")

	// While the spam lock holds, the restriction check denies before counting.
	deps.userRepo.On("GetByEmail", testEmail).Return(nil, apperrors.ErrNotFound).Once()
	err = deps.authService.RequestRegistration(context.Background(), validInput(), entity.RoleUser)
	assert.ErrorIs(t, err, ErrOtpSpamLocked)
}

func TestRequestRegistration_NormalizesEmail(t *testing.T) {
	deps := newAuthTest(t)

	input := validInput()
	input.Email = "  Alice@Shop.Com "

	deps.userRepo.On("GetByEmail", "alice@shop.com").Return(nil, apperrors.ErrNotFound).Once()
	deps.emailService.On("SendOtpEmail", mock.Anything, "alice@shop.com", "Alice", mock.Anything, mock.Anything).
		Return(nil).Once()

	require.NoError(t, deps.authService.RequestRegistration(context.Background(), input, entity.RoleUser))
	assert.True(t, deps.mr.Exists(keyOtpCode.For("alice@shop.com")))
}

func TestVerifyRegistration_Success(t *testing.T) {
	deps := newAuthTest(t)

	deps.mr.Set(keyOtpCode.For(testEmail), "4821")

	deps.userRepo.On("GetByEmail", testEmail).Return(nil, apperrors.ErrNotFound).Once()
	deps.userRepo.On("Create", mock.MatchedBy(func(u *entity.User) bool {
		return u.Email == testEmail && u.Name == "Alice" && u.Role == entity.RoleUser &&
			u.EmailVerifiedAt != nil
	})).Return(nil).Once()

	user, err := deps.authService.VerifyRegistration(context.Background(), VerificationInput{
		Name:     "Alice",
		Email:    testEmail,
		Otp:      "4821",
		Password: "secret123",
	})
	require.NoError(t, err)
	require.NotNil(t, user)

	assert.False(t, deps.mr.Exists(keyOtpCode.For(testEmail)))
	deps.userRepo.AssertExpectations(t)
}

func TestVerifyRegistration_SellerCarriesProfileFields(t *testing.T) {
	deps := newAuthTest(t)

	deps.mr.Set(keyOtpCode.For("bob@shop.com"), "1234")

	deps.userRepo.On("GetByEmail", "bob@shop.com").Return(nil, apperrors.ErrNotFound).Once()
	deps.userRepo.On("Create", mock.MatchedBy(func(u *entity.User) bool {
		return u.Role == entity.RoleSeller && u.PhoneNumber == "+77001234567" && u.Country == "Kazakhstan"
	})).Return(nil).Once()

	_, err := deps.authService.VerifyRegistration(context.Background(), VerificationInput{
		Name:        "Bob",
		Email:       "bob@shop.com",
		Otp:         "1234",
		Password:    "secret123",
		Role:        entity.RoleSeller,
		PhoneNumber: "+77001234567",
		Country:     "Kazakhstan",
	})
	require.NoError(t, err)
	deps.userRepo.AssertExpectations(t)
}

func TestVerifyRegistration_MissingFields(t *testing.T) {
	deps := newAuthTest(t)

	_, err := deps.authService.VerifyRegistration(context.Background(), VerificationInput{
		Email: testEmail,
		Otp:   "4821",
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestVerifyRegistration_EmailTaken(t *testing.T) {
	deps := newAuthTest(t)

	deps.userRepo.On("GetByEmail", testEmail).
		Return(&entity.User{ID: 1, Email: testEmail}, nil).Once()

	_, err := deps.authService.VerifyRegistration(context.Background(), VerificationInput{
		Name:     "Alice",
		Email:    testEmail,
		Otp:      "4821",
		Password: "secret123",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestVerifyRegistration_MismatchDoesNotCreateUser(t *testing.T) {
	deps := newAuthTest(t)

	deps.mr.Set(keyOtpCode.For(testEmail), "4821")
	deps.userRepo.On("GetByEmail", testEmail).Return(nil, apperrors.ErrNotFound).Once()

	_, err := deps.authService.VerifyRegistration(context.Background(), VerificationInput{
		Name:     "Alice",
		Email:    testEmail,
		Otp:      "0000",
		Password: "secret123",
	})

	var mismatch *OtpMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 2, mismatch.AttemptsLeft)
	deps.userRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestUserPasswordHashedOnSave(t *testing.T) {
	user := &entity.User{
		Name:     "Alice",
		Email:    testEmail,
		Password: "secret123",
	}

	require.NoError(t, user.BeforeSave(nil))

	assert.NotEqual(t, "secret123", user.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("secret123")))
	assert.True(t, user.CheckPassword("secret123"))
	assert.False(t, user.CheckPassword("wrong"))
}
