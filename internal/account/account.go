package account

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/hackgods/clinic-records/internal/schema"
	"github.com/hackgods/clinic-records/internal/store"
)

const (
	minPasswordLen = 8
	// bcrypt refuses to hash anything longer.
	maxPasswordLen = 72
)

type RegisterRequest struct {
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     schema.Role `json:"role"`
}

type Service struct {
	store *store.Store
	cost  int
	log   zerolog.Logger
}

func NewService(s *store.Store, log zerolog.Logger) *Service {
	return &Service{
		store: s,
		cost:  bcrypt.DefaultCost,
		log:   log.With().Str("component", "account").Logger(),
	}
}

// Register creates a user with a bcrypt hash of the password. The returned
// row still carries the hash; renderers drop secret columns.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (schema.Row, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	var missing []string
	if username == "" {
		missing = append(missing, "username")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return nil, store.NewViolation(store.ErrDomainViolation, schema.Users, missing, "%s must not be empty", strings.Join(missing, " and "))
	}
	if !req.Role.Valid() {
		return nil, store.NewViolation(store.ErrDomainViolation, schema.Users, []string{"role"}, "unknown role %q", req.Role)
	}
	if len(req.Password) < minPasswordLen {
		return nil, store.NewViolation(store.ErrDomainViolation, schema.Users, []string{"password_hash"},
			"password must be at least %d characters", minPasswordLen)
	}
	if len(req.Password) > maxPasswordLen {
		return nil, store.NewViolation(store.ErrDomainViolation, schema.Users, []string{"password_hash"},
			"password must be at most %d bytes", maxPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.Create(ctx, schema.Users, schema.Row{
		"username":      username,
		"email":         email,
		"password_hash": string(hash),
		"role":          string(req.Role),
	})
	if err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}

	id, _ := user.Int64("user_id")
	s.log.Info().Int64("user_id", id).Str("role", string(req.Role)).Msg("user registered")
	return user, nil
}

// CheckPassword reports whether password matches the user's stored hash.
func (s *Service) CheckPassword(ctx context.Context, userID int64, password string) (bool, error) {
	user, err := s.store.Get(ctx, schema.Users, userID)
	if err != nil {
		return false, err
	}
	hash, _ := user.String("password_hash")
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

func (s *Service) link(ctx context.Context, table string, id, userID int64) (schema.Row, error) {
	row, err := s.store.Update(ctx, table, id, schema.Row{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("link %s %d to user %d: %w", table, id, userID, err)
	}
	return row, nil
}

// LinkPatient attaches a login to a patient. A user can back at most one
// patient.
func (s *Service) LinkPatient(ctx context.Context, patientID, userID int64) (schema.Row, error) {
	return s.link(ctx, schema.Patients, patientID, userID)
}

func (s *Service) LinkDoctor(ctx context.Context, doctorID, userID int64) (schema.Row, error) {
	return s.link(ctx, schema.Doctors, doctorID, userID)
}

func (s *Service) LinkStaff(ctx context.Context, staffID, userID int64) (schema.Row, error) {
	return s.link(ctx, schema.Staff, staffID, userID)
}

func (s *Service) Deactivate(ctx context.Context, userID int64) (schema.Row, error) {
	row, err := s.store.Update(ctx, schema.Users, userID, schema.Row{"is_active": false})
	if err != nil {
		return nil, fmt.Errorf("deactivate user: %w", err)
	}
	s.log.Info().Int64("user_id", userID).Msg("user deactivated")
	return row, nil
}
