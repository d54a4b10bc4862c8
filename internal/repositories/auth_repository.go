package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"restaurant_booking_backend/internal/models"
)

// AuthRepository defines the interface for authentication-related database operations.
type AuthRepository interface {
	CreateUser(ctx context.Context, executor SQLExecutor, user *models.User, hashedPassword string) (int64, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, string, error) // Returns User, HashedPassword, Error
	FindUserByID(ctx context.Context, userID int64) (*models.User, error)
	FindUserByLineUserID(ctx context.Context, lineUserID string) (*models.User, error)
}

// authRepository implements the AuthRepository interface.
type authRepository struct {
	db *sql.DB // The direct database connection pool
}

// NewAuthRepository creates a new instance of AuthRepository.
func NewAuthRepository(db *sql.DB) AuthRepository {
	return &authRepository{db: db}
}

// CreateUser inserts a new active staff user.
func (r *authRepository) CreateUser(ctx context.Context, executor SQLExecutor, user *models.User, hashedPassword string) (int64, error) {
	query := `INSERT INTO users (username, password_hash, full_name, role, restaurant_id, line_user_id, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $7)
	          RETURNING id`

	var userID int64
	err := executor.QueryRowContext(ctx, query,
		user.Username,
		hashedPassword,
		user.FullName,
		user.Role,
		user.RestaurantID,
		user.LineUserID,
		time.Now(),
	).Scan(&userID)
	if err != nil {
		return 0, classifyWriteError(err, "creating user")
	}
	return userID, nil
}

const selectUserFields = `id, username, password_hash, full_name, role, restaurant_id, line_user_id, is_active, created_at, updated_at`

func scanUserRow(row scanner) (*models.User, string, error) {
	user := &models.User{}
	var hashedPassword string
	err := row.Scan(&user.ID, &user.Username, &hashedPassword, &user.FullName, &user.Role,
		&user.RestaurantID, &user.LineUserID, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("%w: scanning user: %v", ErrDatabaseError, err)
	}
	return user, hashedPassword, nil
}

// FindUserByUsername retrieves a user by their username.
// It returns the user model, their hashed password, and an error if any.
func (r *authRepository) FindUserByUsername(ctx context.Context, username string) (*models.User, string, error) {
	query := "SELECT " + selectUserFields + " FROM users WHERE username = $1"
	return scanUserRow(r.db.QueryRowContext(ctx, query, username))
}

// FindUserByID retrieves a user by their ID. The password hash is not returned.
func (r *authRepository) FindUserByID(ctx context.Context, userID int64) (*models.User, error) {
	query := "SELECT " + selectUserFields + " FROM users WHERE id = $1"
	user, _, err := scanUserRow(r.db.QueryRowContext(ctx, query, userID))
	return user, err
}

// FindUserByLineUserID resolves a chat user to an active staff account.
func (r *authRepository) FindUserByLineUserID(ctx context.Context, lineUserID string) (*models.User, error) {
	query := "SELECT " + selectUserFields + " FROM users WHERE line_user_id = $1 AND is_active = TRUE"
	user, _, err := scanUserRow(r.db.QueryRowContext(ctx, query, lineUserID))
	return user, err
}
