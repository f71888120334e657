package users

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge/crypto"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"slimmers/internal/access"
)

type User struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Email             string    `gorm:"uniqueIndex" json:"email"`
	Name              string    `json:"name"`
	EncryptedPassword string    `json:"-"`
	Role              string    `gorm:"size:32;not null;default:member" json:"role"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Identity returns the caller identity the access gate evaluates.
func (u *User) Identity() *access.Identity {
	return &access.Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
}

// ErrUserExists is returned when attempting to create a user that already exists.
var ErrUserExists = errors.New("user already exists")

// ErrUserNotFound is returned when a user lookup fails.
var ErrUserNotFound = gorm.ErrRecordNotFound

// ErrInvalidCredentials is returned by Authenticate for unknown emails and wrong passwords alike.
var ErrInvalidCredentials = errors.New("invalid email or password")

// bcrypt hash of "dummy"; verified when the email is unknown so both paths cost the same.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// FindByEmail retrieves a user by email.
func FindByEmail(db *gorm.DB, email string) (*User, error) {
	var user User
	if err := db.Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID retrieves a user by ID.
func FindByID(db *gorm.DB, id uint) (*User, error) {
	var user User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser creates a user with the given role. It returns ErrUserExists if the email is taken.
func CreateUser(dbConn *gorm.DB, name, email, password, role string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, errors.New("email cannot be empty")
	}
	if password == "" {
		return nil, errors.New("password cannot be empty")
	}
	if role == "" {
		role = access.RoleMember
	}
	if err := validateRole(role); err != nil {
		return nil, err
	}

	if _, err := FindByEmail(dbConn, email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashedPassword, err := crypto.GeneratePasswordHash(password)
	if err != nil {
		return nil, err
	}

	newUser := &User{
		Email:             email,
		Name:              strings.TrimSpace(name),
		EncryptedPassword: string(hashedPassword),
		Role:              role,
	}

	logger := slog.Default()
	err = sqlite.PerformWrite(logger, dbConn, func(tx *gorm.DB) error {
		return tx.Create(newUser).Error
	})
	if err != nil {
		return nil, err
	}
	return newUser, nil
}

// Authenticate checks an email and password pair.
func Authenticate(db *gorm.DB, email, password string) (*User, error) {
	user, err := FindByEmail(db, email)
	if err != nil {
		crypto.VerifyPassword(dummyHash, password)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !crypto.VerifyPassword(user.EncryptedPassword, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// ChangePassword updates a user's password given their email.
func ChangePassword(dbConn *gorm.DB, email, password string) error {
	if password == "" {
		return errors.New("password cannot be empty")
	}

	user, err := FindByEmail(dbConn, email)
	if err != nil {
		return err
	}

	hashedPassword, err := crypto.GeneratePasswordHash(password)
	if err != nil {
		return err
	}

	logger := slog.Default()
	return sqlite.PerformWrite(logger, dbConn, func(tx *gorm.DB) error {
		return tx.Model(user).Update("encrypted_password", string(hashedPassword)).Error
	})
}

// SetRole changes the role of the user with the given email.
func SetRole(dbConn *gorm.DB, email, role string) error {
	if err := validateRole(role); err != nil {
		return err
	}

	user, err := FindByEmail(dbConn, email)
	if err != nil {
		return err
	}

	logger := slog.Default()
	return sqlite.PerformWrite(logger, dbConn, func(tx *gorm.DB) error {
		return tx.Model(user).Update("role", role).Error
	})
}

// EnsureRole grants role to the user with the given email if that user exists.
// Used at startup to bootstrap the configured super admin; a missing user is not an error.
func EnsureRole(dbConn *gorm.DB, logger *slog.Logger, email, role string) error {
	if strings.TrimSpace(email) == "" {
		return nil
	}

	err := SetRole(dbConn, email, role)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Info("Bootstrap user not registered yet", slog.String("email", email))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to ensure role %s for %s: %w", role, email, err)
	}

	logger.Info("Ensured user role", slog.String("email", email), slog.String("role", role))
	return nil
}

// RegistrationRole is the role a self-registered account receives. The
// configured admin address becomes super_admin; everyone else is a member.
func RegistrationRole(email, adminEmail string) string {
	admin := normalizeEmail(adminEmail)
	if admin != "" && normalizeEmail(email) == admin {
		return access.RoleSuperAdmin
	}
	return access.RoleMember
}

func validateRole(role string) error {
	switch role {
	case access.RoleMember, access.RoleSuperAdmin:
		return nil
	default:
		return fmt.Errorf("unknown role %q", role)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
