package directory

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/auth"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
)

// KeycloakUsers is satisfied by *auth.KeycloakClient.
type KeycloakUsers interface {
	GetUser(ctx context.Context, userID string) (*auth.User, error)
}

// KeycloakDirectory reads external applicant accounts.
type KeycloakDirectory struct {
	users KeycloakUsers
}

func NewKeycloakDirectory(users KeycloakUsers) *KeycloakDirectory {
	return &KeycloakDirectory{users: users}
}

func (d *KeycloakDirectory) GetUser(ctx context.Context, userID string) (*models.UserAccount, error) {
	u, err := d.users.GetUser(ctx, userID)
	if stderrors.Is(err, auth.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	return &models.UserAccount{
		ID:        userID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
	}, nil
}
