package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// ParseRole accepts a role claim as issued in a token.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.IsValid()
}

type User struct {
	ID           string    `json:"id" bson:"_id"`
	FirstName    string    `json:"firstName" bson:"first_name"`
	LastName     string    `json:"lastName" bson:"last_name"`
	Email        string    `json:"email" bson:"email"`
	Phone        string    `json:"phone" bson:"phone"`
	Location     string    `json:"location" bson:"location"`
	PasswordHash string    `json:"-" bson:"password_hash"` // never expose hash in JSON
	Role         Role      `json:"role" bson:"role"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updated_at"`
}

// Summary is the public projection returned by auth endpoints and embedded in defect listings.
type Summary struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}

func (u User) Summary() Summary {
	return Summary{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      u.Role,
	}
}

// MaxPasswordBytes is bcrypt's input limit. The binding rule counts
// characters, so multi-byte passwords are checked again against this.
const MaxPasswordBytes = 72

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
)

type RegisterRequest struct {
	FirstName string `json:"firstName" binding:"required,max=80"`
	LastName  string `json:"lastName" binding:"required,max=80"`
	Email     string `json:"email" binding:"required,email,max=254"`
	Phone     string `json:"phone" binding:"required,max=40"`
	Location  string `json:"location" binding:"required,max=200"`
	Password  string `json:"password" binding:"required,min=6,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// NormalizeEmail folds an address to the stored, case-insensitive form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// New builds a user from a validated registration. The caller supplies the
// password hash.
func New(req RegisterRequest, passwordHash string, role Role) User {
	now := time.Now().UTC()

	if !role.IsValid() {
		role = RoleUser
	}

	return User{
		ID:           uuid.NewString(),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        NormalizeEmail(req.Email),
		Phone:        strings.TrimSpace(req.Phone),
		Location:     strings.TrimSpace(req.Location),
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
