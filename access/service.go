package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"contractdesk/audit"
)

var (
	// ErrInvalidCredentials signals a wrong username or password.
	ErrInvalidCredentials = errors.New("access: invalid credentials")
	// ErrWeakPassword signals a password that doesn't meet requirements.
	ErrWeakPassword = errors.New("access: password must be at least 6 characters")
)

// DefaultAdminPassword seeds a freshly initialized credential store.
const DefaultAdminPassword = "admin123"

// Service handles staff authentication and account administration.
// No lockout or throttling is applied here; rate limiting belongs to
// an outer layer.
type Service struct {
	staff     StaffRepository
	creds     CredentialStore
	ledger    audit.Ledger
	jwtSecret []byte
	adminName string
	now       func() time.Time
}

// NewService creates the access control service.
func NewService(staff StaffRepository, creds CredentialStore, ledger audit.Ledger, jwtSecret string) *Service {
	return &Service{
		staff:     staff,
		creds:     creds,
		ledger:    ledger,
		jwtSecret: []byte(jwtSecret),
		adminName: "System Admin",
		now:       time.Now,
	}
}

// WithClock overrides the token timestamp source for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// EnsureAdminSeed installs the default admin credential when the store
// has none yet. Safe to call on every boot.
func (s *Service) EnsureAdminSeed(ctx context.Context, password string) error {
	if password == "" {
		password = DefaultAdminPassword
	}
	if _, err := s.creds.AdminHash(ctx); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("access: hash admin seed: %w", err)
	}
	return s.creds.SetAdminHash(ctx, string(hash))
}

// Authenticate checks the reserved admin account first, then scans
// technician accounts. It returns the role-tagged identity on success.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Identity, error) {
	username = strings.TrimSpace(username)

	if username == AdminUsername {
		hash, err := s.creds.AdminHash(ctx)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return Identity{}, err
		}
		if err == nil && bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil {
			return Identity{Username: AdminUsername, Role: RoleAdmin, Name: s.adminName}, nil
		}
		return Identity{}, ErrInvalidCredentials
	}

	tech, err := s.staff.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(tech.PasswordHash), []byte(password)) != nil {
		return Identity{}, ErrInvalidCredentials
	}
	return Identity{Username: tech.Username, Role: RoleTechnician, Name: tech.Name}, nil
}

// Login authenticates and issues a staff JWT.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	identity, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return LoginResult{}, err
	}
	token, err := s.generateToken(identity)
	if err != nil {
		return LoginResult{}, fmt.Errorf("access: generate token: %w", err)
	}
	return LoginResult{Token: token, Identity: identity}, nil
}

// ChangePassword rotates the admin credential or a technician's
// password. Fails with ErrNotFound for unknown usernames.
func (s *Service) ChangePassword(ctx context.Context, username, newPassword string) error {
	if len(newPassword) < 6 {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("access: hash password: %w", err)
	}

	if username == AdminUsername {
		return s.creds.SetAdminHash(ctx, string(hash))
	}

	tech, err := s.staff.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	tech.PasswordHash = string(hash)
	if _, err := s.staff.Save(ctx, tech); err != nil {
		return err
	}
	return nil
}

// StaffParams carries technician create/update input. Password is the
// clear-text credential; empty means keep the current hash on update.
type StaffParams struct {
	ID       int64
	Username string
	Password string
	Name     string
	Email    *string
	Phone    *string
}

// ListTechnicians returns all technician accounts.
func (s *Service) ListTechnicians(ctx context.Context) ([]Technician, error) {
	return s.staff.List(ctx)
}

// SaveTechnician inserts or updates a technician account, rejecting
// username collisions with any other technician.
func (s *Service) SaveTechnician(ctx context.Context, params StaffParams, actor Actor) (Technician, error) {
	username := strings.TrimSpace(params.Username)
	if username == "" || username == AdminUsername {
		return Technician{}, fmt.Errorf("%w: username %q", ErrInvalidInput, params.Username)
	}
	if params.Name == "" {
		return Technician{}, fmt.Errorf("%w: name required", ErrInvalidInput)
	}

	tech := Technician{
		ID:       params.ID,
		Username: username,
		Name:     params.Name,
		Email:    params.Email,
		Phone:    params.Phone,
	}

	switch {
	case params.Password != "":
		if len(params.Password) < 6 {
			return Technician{}, ErrWeakPassword
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
		if err != nil {
			return Technician{}, fmt.Errorf("access: hash password: %w", err)
		}
		tech.PasswordHash = string(hash)
	case params.ID != 0:
		existing, err := s.staff.FindByUsername(ctx, username)
		if err == nil && existing.ID == params.ID {
			tech.PasswordHash = existing.PasswordHash
		} else {
			return Technician{}, fmt.Errorf("%w: password required when renaming account", ErrInvalidInput)
		}
	default:
		return Technician{}, fmt.Errorf("%w: password required for new account", ErrInvalidInput)
	}

	created := params.ID == 0
	saved, err := s.staff.Save(ctx, tech)
	if err != nil {
		return Technician{}, err
	}

	action, details := audit.StaffUpdated, fmt.Sprintf("Updated technician %s", saved.Username)
	if created {
		action, details = audit.StaffCreated, fmt.Sprintf("Created technician %s", saved.Username)
	}
	s.appendAudit(ctx, action, details, actor)
	return saved, nil
}

// DeleteTechnician removes a technician account.
func (s *Service) DeleteTechnician(ctx context.Context, id int64, actor Actor) error {
	techs, err := s.staff.List(ctx)
	if err != nil {
		return err
	}
	var username string
	for _, t := range techs {
		if t.ID == id {
			username = t.Username
			break
		}
	}
	if err := s.staff.Delete(ctx, id); err != nil {
		return err
	}
	s.appendAudit(ctx, audit.StaffDeleted, fmt.Sprintf("Deleted technician %s", username), actor)
	return nil
}

// VerifyToken validates a staff JWT and returns the embedded identity.
func (s *Service) VerifyToken(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("access: parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, fmt.Errorf("access: invalid token")
	}
	username, ok := claims["username"].(string)
	if !ok {
		return Identity{}, fmt.Errorf("access: invalid username in token")
	}
	roleStr, ok := claims["role"].(string)
	if !ok || !isStaffRole(Role(roleStr)) {
		return Identity{}, fmt.Errorf("access: invalid role in token")
	}
	name, _ := claims["name"].(string)
	return Identity{Username: username, Role: Role(roleStr), Name: name}, nil
}

func (s *Service) generateToken(identity Identity) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"username": identity.Username,
		"role":     string(identity.Role),
		"name":     identity.Name,
		"exp":      now.Add(24 * time.Hour).Unix(),
		"iat":      now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func (s *Service) appendAudit(ctx context.Context, action, details string, actor Actor) {
	if s.ledger == nil {
		return
	}
	// Ledger failures never abort the mutation that triggered them.
	_ = s.ledger.Append(ctx, action, details, actor.String())
}

func isStaffRole(role Role) bool {
	return role == RoleAdmin || role == RoleTechnician
}
