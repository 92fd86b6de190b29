package users

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// RoleType is the application role attached to a user profile
type RoleType string

const (
	RoleOfficer RoleType = "officer" // Election officer, sees the dashboard
	RolePublic  RoleType = "public"  // Member of the public registering to vote
)

// IsOfficer reports whether r is the recognised officer role. Anything else is treated as public.
func (r RoleType) IsOfficer() bool {
	return r == RoleOfficer
}

// User is the application profile joined to an identity by ID.
type User struct {
	ID        string    `json:"id"`                   // Identity ID issued by the identity service
	Email     string    `json:"email"`                // Unique email address
	Username  string    `json:"username,omitempty"`   // Display name
	Role      RoleType  `json:"role"`                 // officer or public
	CreatedAt time.Time `json:"created_at,omitempty"` // When the profile row was provisioned
	UpdatedAt time.Time `json:"updated_at,omitempty"` // Last profile change
}

// Registration is the applicant record of a user. A user has zero or one.
type Registration struct {
	ApplicantID string  `json:"applicant_id"`
	UserID      string  `json:"user_id"`
	Status      string  `json:"registration_status"`
	VoterID     *string `json:"voter_id,omitempty"`
	Precinct    *string `json:"precinct,omitempty"`
}

// NewPublicUser builds the profile provisioned on first login.
func NewPublicUser(id, email, username string, now time.Time) *User {
	return &User{
		ID:        id,
		Email:     email,
		Username:  username,
		Role:      RolePublic,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DefaultUsername derives a display name from an email when the identity carries none.
func DefaultUsername(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
