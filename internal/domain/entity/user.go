package entity

import (
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Account roles supported by the registration flow.
const (
	RoleUser   = "user"
	RoleSeller = "seller"
)

// User represents a registered account.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"size:100;not null" json:"name"`
	Email    string `gorm:"size:100;not null;uniqueIndex" json:"email"`
	Password string `gorm:"size:100;not null" json:"-"`
	Role     string `gorm:"size:20;not null;default:'user'" json:"role"` // "user" or "seller"

	// Seller-only profile fields, empty for regular users.
	PhoneNumber string `gorm:"size:20;not null;default:''" json:"phone_number,omitempty"`
	Country     string `gorm:"size:60;not null;default:''" json:"country,omitempty"`

	// EmailVerifiedAt is set when the account passed OTP verification.
	// Records only ever get created after verification, so this is always
	// populated; kept nullable for older rows.
	EmailVerifiedAt *time.Time `gorm:"type:timestamp" json:"email_verified_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName defines the GORM table name.
func (User) TableName() string {
	return "users"
}

// IsSeller reports whether the account was registered through the seller flow.
func (u *User) IsSeller() bool {
	return u.Role == RoleSeller
}

// BeforeSave hashes the password before persisting, unless it already is a
// bcrypt hash ("$2a$", "$2b$" or "$2y$" prefix).
func (u *User) BeforeSave(tx *gorm.DB) error {
	if len(u.Password) > 0 && !strings.HasPrefix(u.Password, "$2a$") &&
		!strings.HasPrefix(u.Password, "$2b$") && !strings.HasPrefix(u.Password, "$2y$") {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("[User.BeforeSave] Failed to hash password for email=%s: %v", u.Email, err)
			return err
		}
		u.Password = string(hashedPassword)
	}
	return nil
}

// CheckPassword reports whether the given plaintext matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}
