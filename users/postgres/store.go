package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jrsteele09/voter-registration/users"
)

// SQLSTATE codes mapped onto users error kinds.
const (
	codeUniqueViolation       = "23505"
	codeInsufficientPrivilege = "42501"
	codeSerializationFailure  = "40001"
	codeDeadlockDetected      = "40P01"
	codeLockNotAvailable      = "55P03"
)

var _ users.UserRepo = (*Store)(nil)

// Store implements users.UserRepo on the user_profiles and applicants tables.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetByID(ctx context.Context, id string) (*users.User, error) {
	u := &users.User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, username, role, created_at, updated_at FROM user_profiles WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.Username, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, classify(err, "get profile by id")
	}
	return u, nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	u := &users.User{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, username, role, created_at, updated_at FROM user_profiles WHERE lower(email) = lower($1)`,
		email,
	).Scan(&u.ID, &u.Email, &u.Username, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, classify(err, "get profile by email")
	}
	return u, nil
}

func (s *Store) Create(ctx context.Context, u *users.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_profiles (id, email, username, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.Username, string(u.Role), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return classify(err, "insert profile")
	}
	return nil
}

func (s *Store) UpdateUsername(ctx context.Context, id, username string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE user_profiles SET username = $2, updated_at = now() WHERE id = $1`,
		id, username,
	)
	if err != nil {
		return classify(err, "update username")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update username: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update username %s: %w", id, users.ErrNotFound)
	}
	return nil
}

// GetRegistration returns the applicant record joined with any issued voter record, or nil when the user has not applied.
func (s *Store) GetRegistration(ctx context.Context, userID string) (*users.Registration, error) {
	reg := &users.Registration{}
	var voterID, precinct sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT a.id, a.user_id, a.registration_status, v.voter_id, v.precinct
		 FROM applicants a
		 LEFT JOIN voter_records v ON v.applicant_id = a.id
		 WHERE a.user_id = $1`,
		userID,
	).Scan(&reg.ApplicantID, &reg.UserID, &reg.Status, &voterID, &precinct)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "get registration")
	}
	if voterID.Valid {
		reg.VoterID = &voterID.String
	}
	if precinct.Valid {
		reg.Precinct = &precinct.String
	}
	return reg, nil
}

// classify wraps err with the users sentinel matching its SQLSTATE.
func classify(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, users.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w: %s", op, users.ErrDuplicate, pgErr.ConstraintName)
		case codeInsufficientPrivilege:
			return fmt.Errorf("%s: %w: %s", op, users.ErrPermissionDenied, pgErr.Message)
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return fmt.Errorf("%s: %w: %s", op, users.ErrTransient, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
