package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Daylily-Informatics/UltraQC/pkg/apperrors"
	"github.com/Daylily-Informatics/UltraQC/pkg/database"
	"github.com/Daylily-Informatics/UltraQC/pkg/models"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	GetByID(ctx context.Context, userID int64) (*models.User, error)
	// GetByAPIToken returns the user owning the token, or apperrors.ErrNotFound.
	GetByAPIToken(ctx context.Context, token string) (*models.User, error)
}

// userRepository implements UserRepository using PostgreSQL.
type userRepository struct{}

// NewUserRepository creates a new user repository.
func NewUserRepository() UserRepository {
	return &userRepository{}
}

const userColumns = `user_id, username, email, COALESCE(first_name, ''), COALESCE(last_name, ''),
	active, is_admin, api_token, created_at`

// GetByID retrieves a user by primary key.
func (r *userRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	user, err := scanUser(scope.Conn.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return user, nil
}

// GetByAPIToken retrieves the user owning an API token.
func (r *userRepository) GetByAPIToken(ctx context.Context, token string) (*models.User, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE api_token = $1`

	user, err := scanUser(scope.Conn.QueryRow(ctx, query, token))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by token: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.Active,
		&user.IsAdmin,
		&user.APIToken,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Ensure userRepository implements UserRepository at compile time.
var _ UserRepository = (*userRepository)(nil)
