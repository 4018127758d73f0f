package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/eshop-auth-api/internal/domain/entity"
	apperrors "github.com/yourusername/eshop-auth-api/internal/pkg/errors"
	"github.com/yourusername/eshop-auth-api/internal/service"
)

// AuthHandler handles registration and verification requests.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new registration handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Request and response shapes

// RegisterUserRequest represents a user registration request.
type RegisterUserRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=50"`
}

// RegisterSellerRequest represents a seller registration request.
type RegisterSellerRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=100"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6,max=50"`
	PhoneNumber string `json:"phone_number" binding:"required,min=5,max=20"`
	Country     string `json:"country" binding:"required,min=2,max=60"`
}

// VerifyUserRequest represents the final verification step for a user.
type VerifyUserRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Otp      string `json:"otp" binding:"required"`
	Password string `json:"password" binding:"required,min=6,max=50"`
}

// VerifySellerRequest represents the final verification step for a seller.
type VerifySellerRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=100"`
	Email       string `json:"email" binding:"required,email"`
	Otp         string `json:"otp" binding:"required"`
	Password    string `json:"password" binding:"required,min=6,max=50"`
	PhoneNumber string `json:"phone_number" binding:"required,min=5,max=20"`
	Country     string `json:"country" binding:"required,min=2,max=60"`
}

// RegisterUser handles POST /api/user-registration.
// Issues an OTP to the given email; the account is created only after
// verification.
func (h *AuthHandler) RegisterUser(c *gin.Context) {
	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "validation_error"})
		return
	}

	input := service.RegistrationInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}
	if err := h.authService.RequestRegistration(c.Request.Context(), input, entity.RoleUser); err != nil {
		h.handleAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "OTP sent to your email. Please verify your account.",
	})
}

// RegisterSeller handles POST /api/seller-registration.
func (h *AuthHandler) RegisterSeller(c *gin.Context) {
	var req RegisterSellerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "validation_error"})
		return
	}

	input := service.RegistrationInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
		Country:     req.Country,
	}
	if err := h.authService.RequestRegistration(c.Request.Context(), input, entity.RoleSeller); err != nil {
		h.handleAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "OTP sent to your email. Please verify your account.",
	})
}

// VerifyUser handles POST /api/verify-user.
// On a matching OTP the user record is created with a hashed password.
func (h *AuthHandler) VerifyUser(c *gin.Context) {
	var req VerifyUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "validation_error"})
		return
	}

	user, err := h.authService.VerifyRegistration(c.Request.Context(), service.VerificationInput{
		Name:     req.Name,
		Email:    req.Email,
		Otp:      req.Otp,
		Password: req.Password,
		Role:     entity.RoleUser,
	})
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "User registered successfully",
		"user":    user,
	})
}

// VerifySeller handles POST /api/verify-seller.
func (h *AuthHandler) VerifySeller(c *gin.Context) {
	var req VerifySellerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "validation_error"})
		return
	}

	user, err := h.authService.VerifyRegistration(c.Request.Context(), service.VerificationInput{
		Name:        req.Name,
		Email:       req.Email,
		Otp:         req.Otp,
		Password:    req.Password,
		Role:        entity.RoleSeller,
		PhoneNumber: req.PhoneNumber,
		Country:     req.Country,
	})
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Seller registered successfully",
		"user":    user,
	})
}

// handleAuthError maps flow errors to HTTP responses with stable error_type
// values. Restriction errors carry a retry_after hint in seconds.
func (h *AuthHandler) handleAuthError(c *gin.Context, err error) {
	var mismatch *service.OtpMismatchError

	switch {
	case errors.As(err, &mismatch):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":         mismatch.Error(),
			"error_type":    "otp_mismatch",
			"attempts_left": mismatch.AttemptsLeft,
		})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      err.Error(),
			"error_type": "validation_error",
		})
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{
			"error":      err.Error(),
			"error_type": "email_taken",
		})
	case errors.Is(err, service.ErrOtpCooldown):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       err.Error(),
			"error_type":  "otp_cooldown",
			"retry_after": 60,
		})
	case errors.Is(err, service.ErrOtpSpamLocked):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       err.Error(),
			"error_type":  "otp_spam_locked",
			"retry_after": 3600,
		})
	case errors.Is(err, service.ErrOtpLocked):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       err.Error(),
			"error_type":  "otp_locked",
			"retry_after": 1800,
		})
	case errors.Is(err, service.ErrOtpInvalidOrExpired):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      err.Error(),
			"error_type": "otp_invalid_or_expired",
		})
	case errors.Is(err, service.ErrEmailDelivery):
		log.Printf("[AuthHandler] OTP email delivery failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":      "Failed to send OTP email. Please try again later.",
			"error_type": "email_delivery_failed",
		})
	default:
		log.Printf("[AuthHandler] Internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Internal server error",
			"error_type": "internal_error",
		})
	}
}
