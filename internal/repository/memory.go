package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/checklist"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/ledger"
	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/models"
)

// MemoryStore is an in-process Store. Transactions work on a copy of the
// data which replaces the committed copy only when fn succeeds, and run one
// at a time. Failures can be injected per Tx method name with FailOn.
type MemoryStore struct {
	mu       sync.Mutex
	data     *memData
	failures map[string]error
}

type memData struct {
	apps        map[string]*models.Application
	aors        map[string]*checklist.AdminOfficerReview
	wors        map[string]*checklist.WoodlandOfficerReview
	amendments  map[string]*checklist.AmendmentReview
	eiaRequests []checklist.EiaRequest
	felling     map[string]*models.ConfirmedFellingAndRestocking
	conditions  map[string][]models.LicenceCondition
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: &memData{
			apps:       make(map[string]*models.Application),
			aors:       make(map[string]*checklist.AdminOfficerReview),
			wors:       make(map[string]*checklist.WoodlandOfficerReview),
			amendments: make(map[string]*checklist.AmendmentReview),
			felling:    make(map[string]*models.ConfirmedFellingAndRestocking),
			conditions: make(map[string][]models.LicenceCondition),
		},
		failures: make(map[string]error),
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		apps:        make(map[string]*models.Application, len(d.apps)),
		aors:        make(map[string]*checklist.AdminOfficerReview, len(d.aors)),
		wors:        make(map[string]*checklist.WoodlandOfficerReview, len(d.wors)),
		amendments:  make(map[string]*checklist.AmendmentReview, len(d.amendments)),
		eiaRequests: append([]checklist.EiaRequest(nil), d.eiaRequests...),
		felling:     make(map[string]*models.ConfirmedFellingAndRestocking, len(d.felling)),
		conditions:  make(map[string][]models.LicenceCondition, len(d.conditions)),
	}
	for k, v := range d.apps {
		c.apps[k] = v.Clone()
	}
	for k, v := range d.aors {
		c.aors[k] = v.Clone()
	}
	for k, v := range d.wors {
		c.wors[k] = v.Clone()
	}
	for k, v := range d.amendments {
		c.amendments[k] = v.Clone()
	}
	for k, v := range d.felling {
		f := *v
		c.felling[k] = &f
	}
	for k, v := range d.conditions {
		c.conditions[k] = append([]models.LicenceCondition(nil), v...)
	}
	return c
}

// FailOn makes the named Tx method (or "Commit") return err until cleared
// with a nil err.
func (s *MemoryStore) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

// WithTx implements Store.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.data.clone()
	if err := fn(ctx, &memTx{data: work, failures: s.failures}); err != nil {
		return err
	}
	if err := s.failures["Commit"]; err != nil {
		return err
	}
	s.data = work
	return nil
}

// ==========================
// Seeding and inspection
// ==========================

func (s *MemoryStore) PutApplication(app *models.Application) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.apps[app.ID] = app.Clone()
}

func (s *MemoryStore) PutAdminOfficerReview(r *checklist.AdminOfficerReview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.aors[r.ApplicationID] = r.Clone()
}

func (s *MemoryStore) PutWoodlandOfficerReview(r *checklist.WoodlandOfficerReview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.wors[r.ApplicationID] = r.Clone()
}

func (s *MemoryStore) PutAmendment(a *checklist.AmendmentReview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.amendments[a.ID] = a.Clone()
}

func (s *MemoryStore) PutConfirmedFellingAndRestocking(f *models.ConfirmedFellingAndRestocking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *f
	s.data.felling[f.ApplicationID] = &c
}

func (s *MemoryStore) Application(id string) (*models.Application, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.data.apps[id]
	if !ok {
		return nil, false
	}
	return app.Clone(), true
}

func (s *MemoryStore) AdminOfficerReview(applicationID string) (*checklist.AdminOfficerReview, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data.aors[applicationID]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

func (s *MemoryStore) WoodlandOfficerReview(applicationID string) (*checklist.WoodlandOfficerReview, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data.wors[applicationID]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Amendments returns the amendment reviews of an application ordered by send time.
func (s *MemoryStore) Amendments(applicationID string) []*checklist.AmendmentReview {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*checklist.AmendmentReview
	for _, a := range s.data.amendments {
		if a.ApplicationID == applicationID {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AmendmentsSentAt.Before(out[j].AmendmentsSentAt) })
	return out
}

func (s *MemoryStore) EiaRequests(applicationID string) []checklist.EiaRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []checklist.EiaRequest
	for _, r := range s.data.eiaRequests {
		if r.ApplicationID == applicationID {
			out = append(out, r)
		}
	}
	return out
}

func (s *MemoryStore) Conditions(applicationID string) []models.LicenceCondition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.LicenceCondition(nil), s.data.conditions[applicationID]...)
}

// ==========================
// Tx
// ==========================

type memTx struct {
	data     *memData
	failures map[string]error
}

func (t *memTx) fail(method string) error {
	return t.failures[method]
}

func (t *memTx) app(id string) (*models.Application, error) {
	app, ok := t.data.apps[id]
	if !ok {
		return nil, fmt.Errorf("application %s: %w", id, ErrNotFound)
	}
	return app, nil
}

func (t *memTx) GetApplication(_ context.Context, applicationID string) (*models.Application, error) {
	if err := t.fail("GetApplication"); err != nil {
		return nil, err
	}
	app, err := t.app(applicationID)
	if err != nil {
		return nil, err
	}
	return app.Clone(), nil
}

func (t *memTx) InsertStatus(_ context.Context, applicationID string, entry ledger.StatusEntry) error {
	if err := t.fail("InsertStatus"); err != nil {
		return err
	}
	app, err := t.app(applicationID)
	if err != nil {
		return err
	}
	app.StatusHistory = append(app.StatusHistory, entry)
	return nil
}

func (t *memTx) InsertAssignment(_ context.Context, applicationID string, a ledger.Assignment) error {
	if err := t.fail("InsertAssignment"); err != nil {
		return err
	}
	app, err := t.app(applicationID)
	if err != nil {
		return err
	}
	if _, open := app.Assignees.Current(a.Role); open {
		return fmt.Errorf("role %s already has an open assignment", a.Role)
	}
	app.Assignees = append(app.Assignees, a)
	return nil
}

func (t *memTx) CloseAssignment(_ context.Context, applicationID string, a ledger.Assignment) error {
	if err := t.fail("CloseAssignment"); err != nil {
		return err
	}
	app, err := t.app(applicationID)
	if err != nil {
		return err
	}
	for i := range app.Assignees {
		if app.Assignees[i].ID == a.ID && app.Assignees[i].Open() {
			app.Assignees[i].UnassignedAt = a.UnassignedAt
			return nil
		}
	}
	return fmt.Errorf("assignment %s: %w", a.ID, ErrNotFound)
}

func (t *memTx) GetAdminOfficerReview(_ context.Context, applicationID string) (*checklist.AdminOfficerReview, error) {
	if err := t.fail("GetAdminOfficerReview"); err != nil {
		return nil, err
	}
	r, ok := t.data.aors[applicationID]
	if !ok {
		return nil, fmt.Errorf("admin officer review for %s: %w", applicationID, ErrNotFound)
	}
	return r.Clone(), nil
}

func (t *memTx) SaveAdminOfficerReview(_ context.Context, r *checklist.AdminOfficerReview) error {
	if err := t.fail("SaveAdminOfficerReview"); err != nil {
		return err
	}
	if _, err := t.app(r.ApplicationID); err != nil {
		return err
	}
	t.data.aors[r.ApplicationID] = r.Clone()
	return nil
}

func (t *memTx) GetWoodlandOfficerReview(_ context.Context, applicationID string) (*checklist.WoodlandOfficerReview, error) {
	if err := t.fail("GetWoodlandOfficerReview"); err != nil {
		return nil, err
	}
	r, ok := t.data.wors[applicationID]
	if !ok {
		return nil, fmt.Errorf("woodland officer review for %s: %w", applicationID, ErrNotFound)
	}
	return r.Clone(), nil
}

func (t *memTx) SaveWoodlandOfficerReview(_ context.Context, r *checklist.WoodlandOfficerReview) error {
	if err := t.fail("SaveWoodlandOfficerReview"); err != nil {
		return err
	}
	if _, err := t.app(r.ApplicationID); err != nil {
		return err
	}
	t.data.wors[r.ApplicationID] = r.Clone()
	return nil
}

func (t *memTx) GetPendingAmendment(_ context.Context, applicationID string) (*checklist.AmendmentReview, error) {
	if err := t.fail("GetPendingAmendment"); err != nil {
		return nil, err
	}
	for _, a := range t.data.amendments {
		if a.ApplicationID == applicationID && a.Pending() {
			return a.Clone(), nil
		}
	}
	return nil, fmt.Errorf("pending amendment for %s: %w", applicationID, ErrNotFound)
}

func (t *memTx) GetAmendment(_ context.Context, amendmentID string) (*checklist.AmendmentReview, error) {
	if err := t.fail("GetAmendment"); err != nil {
		return nil, err
	}
	a, ok := t.data.amendments[amendmentID]
	if !ok {
		return nil, fmt.Errorf("amendment %s: %w", amendmentID, ErrNotFound)
	}
	return a.Clone(), nil
}

func (t *memTx) InsertAmendment(_ context.Context, a *checklist.AmendmentReview) error {
	if err := t.fail("InsertAmendment"); err != nil {
		return err
	}
	if _, err := t.app(a.ApplicationID); err != nil {
		return err
	}
	for _, existing := range t.data.amendments {
		if existing.ApplicationID == a.ApplicationID && existing.Pending() {
			return fmt.Errorf("application %s: %w", a.ApplicationID, ErrPendingAmendmentExists)
		}
	}
	t.data.amendments[a.ID] = a.Clone()
	return nil
}

func (t *memTx) UpdateAmendment(_ context.Context, a *checklist.AmendmentReview) error {
	if err := t.fail("UpdateAmendment"); err != nil {
		return err
	}
	if _, ok := t.data.amendments[a.ID]; !ok {
		return fmt.Errorf("amendment %s: %w", a.ID, ErrNotFound)
	}
	t.data.amendments[a.ID] = a.Clone()
	return nil
}

func (t *memTx) InsertEiaRequest(_ context.Context, r checklist.EiaRequest) error {
	if err := t.fail("InsertEiaRequest"); err != nil {
		return err
	}
	if _, err := t.app(r.ApplicationID); err != nil {
		return err
	}
	t.data.eiaRequests = append(t.data.eiaRequests, r)
	return nil
}

func (t *memTx) GetConfirmedFellingAndRestocking(_ context.Context, applicationID string) (*models.ConfirmedFellingAndRestocking, error) {
	if err := t.fail("GetConfirmedFellingAndRestocking"); err != nil {
		return nil, err
	}
	f, ok := t.data.felling[applicationID]
	if !ok {
		return nil, fmt.Errorf("confirmed felling and restocking for %s: %w", applicationID, ErrNotFound)
	}
	c := *f
	return &c, nil
}

func (t *memTx) SaveConditions(_ context.Context, applicationID string, conditions []models.LicenceCondition) error {
	if err := t.fail("SaveConditions"); err != nil {
		return err
	}
	if _, err := t.app(applicationID); err != nil {
		return err
	}
	t.data.conditions[applicationID] = append([]models.LicenceCondition(nil), conditions...)
	return nil
}
