// Package repository persists applications and their review checklists.
// Every review operation runs inside exactly one transaction opened with
// Store.WithTx; nothing written through a Tx is visible to others until fn
// returns nil.
package repository

import (
	"context"
	"errors"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/checklist"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/ledger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrPendingAmendmentExists = errors.New("a pending amendment review already exists")
)

// Store opens transactions.
type Store interface {
	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of reads and writes available inside a transaction.
// Reads of an application or checklist lock the row until the transaction ends.
type Tx interface {
	GetApplication(ctx context.Context, applicationID string) (*models.Application, error)
	InsertStatus(ctx context.Context, applicationID string, entry ledger.StatusEntry) error
	InsertAssignment(ctx context.Context, applicationID string, a ledger.Assignment) error
	CloseAssignment(ctx context.Context, applicationID string, a ledger.Assignment) error

	GetAdminOfficerReview(ctx context.Context, applicationID string) (*checklist.AdminOfficerReview, error)
	SaveAdminOfficerReview(ctx context.Context, r *checklist.AdminOfficerReview) error
	GetWoodlandOfficerReview(ctx context.Context, applicationID string) (*checklist.WoodlandOfficerReview, error)
	SaveWoodlandOfficerReview(ctx context.Context, r *checklist.WoodlandOfficerReview) error

	GetPendingAmendment(ctx context.Context, applicationID string) (*checklist.AmendmentReview, error)
	GetAmendment(ctx context.Context, amendmentID string) (*checklist.AmendmentReview, error)
	InsertAmendment(ctx context.Context, a *checklist.AmendmentReview) error
	UpdateAmendment(ctx context.Context, a *checklist.AmendmentReview) error

	InsertEiaRequest(ctx context.Context, r checklist.EiaRequest) error

	GetConfirmedFellingAndRestocking(ctx context.Context, applicationID string) (*models.ConfirmedFellingAndRestocking, error)
	SaveConditions(ctx context.Context, applicationID string, conditions []models.LicenceCondition) error
}
