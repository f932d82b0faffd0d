package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/pr-workflow/internal/application/port"
	"github.com/garyjia/pr-workflow/internal/domain/apperr"
	"github.com/garyjia/pr-workflow/internal/domain/entity"
	"github.com/garyjia/pr-workflow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{db: db, logger: logger}
}

const userColumns = `id, username, password_hash, full_name, email, department, role, active, created_at, last_login`

func scanUser(row interface{ Scan(...interface{}) error }) (*entity.User, error) {
	var u entity.User
	var lastLogin sql.NullTime
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FullName, &u.Email,
		&u.Department, &u.Role, &u.Active, &u.CreatedAt, &lastLogin); err != nil {
		return nil, err
	}
	u.LastLogin = timePtr(lastLogin)
	return &u, nil
}

// Create inserts an account; a duplicate username is a conflict
func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	query := `
		INSERT INTO users (username, password_hash, full_name, email, department, role, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		u.Username, u.PasswordHash, u.FullName, u.Email, u.Department, u.Role, boolToInt(u.Active), u.CreatedAt.UTC())
	if err != nil {
		return insertError(r.logger, err, fmt.Sprintf("username %s already exists", u.Username),
			zap.String("username", u.Username))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	u.ID = id
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg interface{}, label string) (*entity.User, error) {
	u, err := scanUser(sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user %v not found", label)
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.String("key", label), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetByID retrieves an account by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return r.getOne(ctx, "id = ?", id, fmt.Sprint(id))
}

// GetByUsername retrieves an account by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.getOne(ctx, "username = ?", username, username)
}

// ListActiveByRole returns active accounts holding role, oldest first
func (r *UserRepository) ListActiveByRole(ctx context.Context, role entity.Role) ([]*entity.User, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = ? AND active = 1 ORDER BY id`, role)
	if err != nil {
		r.logger.Error("Failed to list users by role", zap.String("role", string(role)), zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return collectUsers(rows)
}

// List returns every account ordered by username
func (r *UserRepository) List(ctx context.Context) ([]*entity.User, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return collectUsers(rows)
}

func collectUsers(rows *sql.Rows) ([]*entity.User, error) {
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetActive enables or disables an account
func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE users SET active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		r.logger.Error("Failed to update user", zap.Int64("user_id", id), zap.Error(err))
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("user %d not found", id)
	}
	return nil
}

// SetPasswordHash replaces the stored password hash
func (r *UserRepository) SetPasswordHash(ctx context.Context, id int64, hash string) error {
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		r.logger.Error("Failed to update password", zap.Int64("user_id", id), zap.Error(err))
		return fmt.Errorf("failed to update password: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("user %d not found", id)
	}
	return nil
}

// TouchLastLogin records a successful login
func (r *UserRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	if _, err := sqlite.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE users SET last_login = ? WHERE id = ?`, at.UTC(), id); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
