package service

// otpKeyKind enumerates the per-identity key namespaces used by the OTP flow.
// Building keys through it keeps the issuance and verification paths from
// drifting apart on raw string formatting.
type otpKeyKind string

const (
	keyOtpCode         otpKeyKind = "otp"
	keyOtpCooldown     otpKeyKind = "otp_cooldown"
	keyOtpRequestCount otpKeyKind = "otp_request_count"
	keyOtpSpamLock     otpKeyKind = "otp_spam_lock"
	keyOtpAttempts     otpKeyKind = "otp_attempts"
	keyOtpLock         otpKeyKind = "otp_lock"
)

// For returns the store key for the given identity, e.g. "otp:user@shop.com".
func (k otpKeyKind) For(email string) string {
	return string(k) + ":" + email
}
