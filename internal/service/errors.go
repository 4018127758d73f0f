package service

import (
	"errors"
	"fmt"
)

// Registration/OTP flow errors used by handlers for stable error_type mapping.
var (
	ErrEmailTaken          = errors.New("user with this email already exists")
	ErrOtpLocked           = errors.New("account locked due to multiple failed attempts, try again after 30 minutes")
	ErrOtpSpamLocked       = errors.New("too many OTP requests, please wait 1 hour before requesting again")
	ErrOtpCooldown         = errors.New("please wait 1 minute before requesting another OTP")
	ErrOtpInvalidOrExpired = errors.New("invalid or expired OTP")
	ErrEmailDelivery       = errors.New("failed to deliver OTP email")
)

// OtpMismatchError reports a failed verification attempt together with the
// number of attempts left before the hard lock engages.
type OtpMismatchError struct {
	AttemptsLeft int
}

func (e *OtpMismatchError) Error() string {
	if e.AttemptsLeft == 1 {
		return "incorrect OTP, 1 attempt left"
	}
	return fmt.Sprintf("incorrect OTP, %d attempts left", e.AttemptsLeft)
}
