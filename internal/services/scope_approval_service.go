package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/BradenHooton/amgate/internal/criteria"
	"github.com/BradenHooton/amgate/internal/models"
	"github.com/BradenHooton/amgate/internal/repositories"
)

const (
	opApprovalFindByID         = "scope_approval.find_by_id"
	opApprovalFindMany         = "scope_approval.find_many"
	opApprovalCreate           = "scope_approval.create"
	opApprovalUpdate           = "scope_approval.update"
	opApprovalUpsert           = "scope_approval.upsert"
	opApprovalDelete           = "scope_approval.delete"
	opApprovalDeleteByCriteria = "scope_approval.delete_by_criteria"
)

// ScopeApprovalService is the scope approval store.
//
// Upsert relies on the backend rejecting a second record for the same natural key
// with models.ErrConflict. The losing writer retries once as lookup-then-update, so
// concurrent upserts for one key leave exactly one record and the last write wins.
type ScopeApprovalService struct {
	backend repositories.ScopeApprovalBackend
	opts    storeOptions
}

// NewScopeApprovalService creates a new ScopeApprovalService
func NewScopeApprovalService(backend repositories.ScopeApprovalBackend, opts ...StoreOption) *ScopeApprovalService {
	return &ScopeApprovalService{
		backend: backend,
		opts:    newStoreOptions(opts),
	}
}

// FindByID returns the approval with the given id if it is still visible, or nil
func (s *ScopeApprovalService) FindByID(ctx context.Context, id string) (*models.ScopeApproval, error) {
	finish := s.opts.observer.Begin(ctx, opApprovalFindByID, slog.String("id", id))

	approval, err := s.backend.GetByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		finish(nil)
		return nil, nil
	}
	if err != nil {
		finish(err)
		return nil, persistenceFailure(opApprovalFindByID, err)
	}

	finish(nil)
	if !approval.VisibleAt(s.opts.clock.Now()) {
		return nil, nil
	}
	return approval, nil
}

// FindByDomainAndUserAndClient returns the visible approvals a user gave a client
func (s *ScopeApprovalService) FindByDomainAndUserAndClient(ctx context.Context, domain, userID, clientID string) ([]*models.ScopeApproval, error) {
	return s.findMany(ctx, models.ScopeApprovalCriteria{Domain: domain, UserID: userID, ClientID: clientID})
}

// FindByDomainAndUser returns every visible approval a user gave in a domain
func (s *ScopeApprovalService) FindByDomainAndUser(ctx context.Context, domain, userID string) ([]*models.ScopeApproval, error) {
	return s.findMany(ctx, models.ScopeApprovalCriteria{Domain: domain, UserID: userID})
}

func (s *ScopeApprovalService) findMany(ctx context.Context, c models.ScopeApprovalCriteria) ([]*models.ScopeApproval, error) {
	finish := s.opts.observer.Begin(ctx, opApprovalFindMany, approvalCriteriaAttrs(c)...)

	filter := criteria.ForScopeApproval(c).Visible(s.opts.clock.Now())
	found, err := s.backend.FindMany(ctx, filter)
	if err != nil {
		finish(err)
		return nil, persistenceFailure(opApprovalFindMany, err)
	}

	seen := make(map[string]struct{}, len(found))
	approvals := make([]*models.ScopeApproval, 0, len(found))
	for _, a := range found {
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		approvals = append(approvals, a)
	}

	finish(nil)
	return approvals, nil
}

// Create stores a new approval and returns it as re-read from the backend.
// A natural key collision surfaces as a PersistenceError wrapping models.ErrConflict.
func (s *ScopeApprovalService) Create(ctx context.Context, item *models.ScopeApproval) (*models.ScopeApproval, error) {
	record := *item
	if record.ID == "" {
		record.ID = s.opts.newID()
	}
	now := s.opts.clock.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}

	finish := s.opts.observer.Begin(ctx, opApprovalCreate, approvalAttrs(&record)...)

	stored, err := s.insert(ctx, &record)
	if err != nil {
		finish(err)
		return nil, persistenceFailure(opApprovalCreate, err)
	}

	finish(nil)
	return stored, nil
}

// Update replaces the stored approval with the same id
func (s *ScopeApprovalService) Update(ctx context.Context, item *models.ScopeApproval) (*models.ScopeApproval, error) {
	finish := s.opts.observer.Begin(ctx, opApprovalUpdate, approvalAttrs(item)...)

	stored, err := s.backend.Replace(ctx, item)
	if err != nil {
		finish(err)
		return nil, persistenceFailure(opApprovalUpdate, err)
	}

	finish(nil)
	return stored, nil
}

// Upsert creates the approval or updates the record already holding its natural key.
// The lookup ignores expiry so an expired record is revived in place rather than
// duplicated. On create CreatedAt and UpdatedAt are both set to now; on update the
// existing id and CreatedAt are kept and UpdatedAt is set to now.
func (s *ScopeApprovalService) Upsert(ctx context.Context, approval *models.ScopeApproval) (*models.ScopeApproval, error) {
	finish := s.opts.observer.Begin(ctx, opApprovalUpsert, approvalAttrs(approval)...)

	stored, err := s.upsertOnce(ctx, approval)
	if errors.Is(err, models.ErrConflict) {
		// another writer created the key between our lookup and insert
		stored, err = s.upsertOnce(ctx, approval)
	}
	if err != nil {
		finish(err)
		return nil, persistenceFailure(opApprovalUpsert, err)
	}

	finish(nil)
	return stored, nil
}

func (s *ScopeApprovalService) upsertOnce(ctx context.Context, approval *models.ScopeApproval) (*models.ScopeApproval, error) {
	existing, err := s.backend.FindOne(ctx, criteria.NaturalKey(approval))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	now := s.opts.clock.Now()
	record := *approval
	record.UpdatedAt = now

	if existing == nil {
		if record.ID == "" {
			record.ID = s.opts.newID()
		}
		record.CreatedAt = now
		return s.insert(ctx, &record)
	}

	record.ID = existing.ID
	record.CreatedAt = existing.CreatedAt
	return s.backend.Replace(ctx, &record)
}

func (s *ScopeApprovalService) insert(ctx context.Context, record *models.ScopeApproval) (*models.ScopeApproval, error) {
	if err := s.backend.Insert(ctx, record); err != nil {
		return nil, err
	}
	return s.backend.GetByID(ctx, record.ID)
}

// Delete removes an approval by id. Deleting an absent id is not an error.
func (s *ScopeApprovalService) Delete(ctx context.Context, id string) error {
	finish := s.opts.observer.Begin(ctx, opApprovalDelete, slog.String("id", id))

	if err := s.backend.DeleteByID(ctx, id); err != nil {
		finish(err)
		return persistenceFailure(opApprovalDelete, err)
	}

	finish(nil)
	return nil
}

// DeleteByCriteria removes every approval matching c. At least one field must be set.
func (s *ScopeApprovalService) DeleteByCriteria(ctx context.Context, c models.ScopeApprovalCriteria) (int64, error) {
	filter, err := criteria.ForScopeApproval(c).ForDelete()
	return s.deleteWhere(ctx, c, filter, err)
}

// DeleteByDomainAndScope revokes a scope for every user of a domain
func (s *ScopeApprovalService) DeleteByDomainAndScope(ctx context.Context, domain, scope string) (int64, error) {
	filter, err := criteria.RequireAll(criteria.Eq(criteria.Domain, domain), criteria.Eq(criteria.Scope, scope))
	return s.deleteWhere(ctx, models.ScopeApprovalCriteria{Domain: domain, Scope: scope}, filter, err)
}

// DeleteByDomainAndUser revokes every approval a user gave in a domain
func (s *ScopeApprovalService) DeleteByDomainAndUser(ctx context.Context, domain, userID string) (int64, error) {
	filter, err := criteria.RequireAll(criteria.Eq(criteria.Domain, domain), criteria.Eq(criteria.UserID, userID))
	return s.deleteWhere(ctx, models.ScopeApprovalCriteria{Domain: domain, UserID: userID}, filter, err)
}

// DeleteByDomainAndUserAndClient revokes the approvals a user gave one client
func (s *ScopeApprovalService) DeleteByDomainAndUserAndClient(ctx context.Context, domain, userID, clientID string) (int64, error) {
	filter, err := criteria.RequireAll(
		criteria.Eq(criteria.Domain, domain),
		criteria.Eq(criteria.UserID, userID),
		criteria.Eq(criteria.ClientID, clientID),
	)
	return s.deleteWhere(ctx, models.ScopeApprovalCriteria{Domain: domain, UserID: userID, ClientID: clientID}, filter, err)
}

func (s *ScopeApprovalService) deleteWhere(ctx context.Context, c models.ScopeApprovalCriteria, filter criteria.Filter, guardErr error) (int64, error) {
	finish := s.opts.observer.Begin(ctx, opApprovalDeleteByCriteria, approvalCriteriaAttrs(c)...)

	if guardErr != nil {
		finish(guardErr)
		return 0, guardErr
	}

	n, err := s.backend.DeleteWhere(ctx, filter)
	if err != nil {
		finish(err)
		return 0, persistenceFailure(opApprovalDeleteByCriteria, err)
	}

	finish(nil)
	return n, nil
}

func approvalCriteriaAttrs(c models.ScopeApprovalCriteria) []slog.Attr {
	return []slog.Attr{
		slog.String("domain", c.Domain),
		slog.String("user_id", c.UserID),
		slog.String("client_id", c.ClientID),
		slog.String("scope", c.Scope),
	}
}

func approvalAttrs(a *models.ScopeApproval) []slog.Attr {
	return append([]slog.Attr{slog.String("id", a.ID)}, approvalCriteriaAttrs(a.NaturalKey())...)
}
