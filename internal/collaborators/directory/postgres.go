package directory

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
)

// PostgresDirectory reads internal staff accounts.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) GetUser(ctx context.Context, userID string) (*models.UserAccount, error) {
	var (
		u         models.UserAccount
		firstName sql.NullString
		lastName  sql.NullString
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, email FROM internal_users WHERE id = $1`, userID,
	).Scan(&u.ID, &firstName, &lastName, &u.Email)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("internal user lookup: %w", err)
	}
	u.FirstName = firstName.String
	u.LastName = lastName.String
	return &u, nil
}
