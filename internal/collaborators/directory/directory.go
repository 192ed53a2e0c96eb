// Package directory resolves user identifiers to contact records.
// Internal staff live in Postgres; external applicants live in Keycloak.
package directory

import (
	"context"
	stderrors "errors"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
)

var ErrUserNotFound = stderrors.New("user not found")

// Directory looks up one user account.
type Directory interface {
	GetUser(ctx context.Context, userID string) (*models.UserAccount, error)
}

// MapDirectory is an in-memory Directory.
type MapDirectory map[string]models.UserAccount

func (m MapDirectory) GetUser(ctx context.Context, userID string) (*models.UserAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, ok := m[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}
