package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/amgate/internal/criteria"
	"github.com/BradenHooton/amgate/internal/models"
	gocache "github.com/patrickmn/go-cache"
)

// Memory backends keep records in go-cache with no cache-level expiry: records
// stay physically present after they expire, exactly like the Postgres rows.
// Compound writes hold mu so each Insert/Replace is a single atomic step.

var (
	_ LoginAttemptBackend  = (*MemoryLoginAttemptRepository)(nil)
	_ ScopeApprovalBackend = (*MemoryScopeApprovalRepository)(nil)
	_ LoginAttemptBackend  = (*LoginAttemptRepository)(nil)
	_ ScopeApprovalBackend = (*ScopeApprovalRepository)(nil)
)

// MemoryLoginAttemptRepository is an in-process LoginAttemptBackend
type MemoryLoginAttemptRepository struct {
	mu    sync.RWMutex
	items *gocache.Cache
}

func NewMemoryLoginAttemptRepository() *MemoryLoginAttemptRepository {
	return &MemoryLoginAttemptRepository{items: gocache.New(gocache.NoExpiration, 0)}
}

func (r *MemoryLoginAttemptRepository) snapshot(filter criteria.Filter) []*models.LoginAttempt {
	out := make([]*models.LoginAttempt, 0)
	for _, item := range r.items.Items() {
		obj := item.Object.(models.LoginAttempt)
		a := copyAttempt(&obj)
		if filter.Match(criteria.LoginAttemptRecord(&a)) {
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return earlier(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out
}

func (r *MemoryLoginAttemptRepository) GetByID(ctx context.Context, id string) (*models.LoginAttempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.items.Get(id)
	if !ok {
		return nil, models.ErrNotFound
	}
	obj := v.(models.LoginAttempt)
	a := copyAttempt(&obj)
	return &a, nil
}

func (r *MemoryLoginAttemptRepository) FindOne(ctx context.Context, filter criteria.Filter) (*models.LoginAttempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := r.snapshot(filter)
	if len(matches) == 0 {
		return nil, models.ErrNotFound
	}
	return matches[0], nil
}

func (r *MemoryLoginAttemptRepository) Insert(ctx context.Context, a *models.LoginAttempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.items.Add(a.ID, copyAttempt(a), gocache.NoExpiration); err != nil {
		return models.ErrConflict
	}
	return nil
}

func (r *MemoryLoginAttemptRepository) Replace(ctx context.Context, a *models.LoginAttempt) (*models.LoginAttempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.items.Replace(a.ID, copyAttempt(a), gocache.NoExpiration); err != nil {
		return nil, models.ErrNotFound
	}
	stored := copyAttempt(a)
	return &stored, nil
}

func (r *MemoryLoginAttemptRepository) DeleteByID(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items.Delete(id)
	return nil
}

func (r *MemoryLoginAttemptRepository) DeleteWhere(ctx context.Context, filter criteria.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, a := range r.snapshot(filter) {
		r.items.Delete(a.ID)
		n++
	}
	return n, nil
}

func (r *MemoryLoginAttemptRepository) Count(ctx context.Context, filter criteria.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.snapshot(filter))), nil
}

// Apply holds the write lock across the read and the save, so every call is serialized
func (r *MemoryLoginAttemptRepository) Apply(ctx context.Context, _ string, filter criteria.Filter, fn AttemptMutation) (*models.LoginAttempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var current *models.LoginAttempt
	if matches := r.snapshot(filter); len(matches) > 0 {
		current = matches[0]
	}

	next := fn(current)
	if current == nil {
		if err := r.items.Add(next.ID, copyAttempt(next), gocache.NoExpiration); err != nil {
			return nil, models.ErrConflict
		}
	} else {
		if next.ID != current.ID {
			return nil, models.ErrConflict
		}
		r.items.Set(next.ID, copyAttempt(next), gocache.NoExpiration)
	}

	stored := copyAttempt(next)
	return &stored, nil
}

func (r *MemoryLoginAttemptRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, item := range r.items.Items() {
		a := item.Object.(models.LoginAttempt)
		if !a.VisibleAt(now) {
			r.items.Delete(id)
			n++
		}
	}
	return n, nil
}

// MemoryScopeApprovalRepository is an in-process ScopeApprovalBackend. keys indexes
// natural key -> id and plays the role of the unique constraint.
type MemoryScopeApprovalRepository struct {
	mu    sync.RWMutex
	items *gocache.Cache
	keys  *gocache.Cache
}

func NewMemoryScopeApprovalRepository() *MemoryScopeApprovalRepository {
	return &MemoryScopeApprovalRepository{
		items: gocache.New(gocache.NoExpiration, 0),
		keys:  gocache.New(gocache.NoExpiration, 0),
	}
}

func naturalKey(a *models.ScopeApproval) string {
	return strings.Join([]string{a.Domain, a.UserID, a.ClientID, a.Scope}, "\x00")
}

func (r *MemoryScopeApprovalRepository) snapshot(filter criteria.Filter) []*models.ScopeApproval {
	out := make([]*models.ScopeApproval, 0)
	for _, item := range r.items.Items() {
		obj := item.Object.(models.ScopeApproval)
		a := copyApproval(&obj)
		if filter.Match(criteria.ScopeApprovalRecord(&a)) {
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return earlier(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out
}

func (r *MemoryScopeApprovalRepository) GetByID(ctx context.Context, id string) (*models.ScopeApproval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.items.Get(id)
	if !ok {
		return nil, models.ErrNotFound
	}
	obj := v.(models.ScopeApproval)
	a := copyApproval(&obj)
	return &a, nil
}

func (r *MemoryScopeApprovalRepository) FindOne(ctx context.Context, filter criteria.Filter) (*models.ScopeApproval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := r.snapshot(filter)
	if len(matches) == 0 {
		return nil, models.ErrNotFound
	}
	return matches[0], nil
}

func (r *MemoryScopeApprovalRepository) FindMany(ctx context.Context, filter criteria.Filter) ([]*models.ScopeApproval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.snapshot(filter), nil
}

func (r *MemoryScopeApprovalRepository) Insert(ctx context.Context, a *models.ScopeApproval) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := naturalKey(a)
	if err := r.keys.Add(key, a.ID, gocache.NoExpiration); err != nil {
		return models.ErrConflict
	}
	if err := r.items.Add(a.ID, copyApproval(a), gocache.NoExpiration); err != nil {
		r.keys.Delete(key)
		return models.ErrConflict
	}
	return nil
}

func (r *MemoryScopeApprovalRepository) Replace(ctx context.Context, a *models.ScopeApproval) (*models.ScopeApproval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.items.Get(a.ID)
	if !ok {
		return nil, models.ErrNotFound
	}
	previous := v.(models.ScopeApproval)

	oldKey, newKey := naturalKey(&previous), naturalKey(a)
	if oldKey != newKey {
		if owner, taken := r.keys.Get(newKey); taken && owner.(string) != a.ID {
			return nil, models.ErrConflict
		}
		r.keys.Delete(oldKey)
		r.keys.Set(newKey, a.ID, gocache.NoExpiration)
	}

	r.items.Set(a.ID, copyApproval(a), gocache.NoExpiration)
	stored := copyApproval(a)
	return &stored, nil
}

func (r *MemoryScopeApprovalRepository) DeleteByID(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deleteLocked(id)
	return nil
}

func (r *MemoryScopeApprovalRepository) deleteLocked(id string) {
	v, ok := r.items.Get(id)
	if !ok {
		return
	}
	a := v.(models.ScopeApproval)
	r.keys.Delete(naturalKey(&a))
	r.items.Delete(id)
}

func (r *MemoryScopeApprovalRepository) DeleteWhere(ctx context.Context, filter criteria.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, a := range r.snapshot(filter) {
		r.deleteLocked(a.ID)
		n++
	}
	return n, nil
}

func (r *MemoryScopeApprovalRepository) Count(ctx context.Context, filter criteria.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.snapshot(filter))), nil
}

func copyAttempt(a *models.LoginAttempt) models.LoginAttempt {
	c := *a
	if a.ExpireAt != nil {
		t := *a.ExpireAt
		c.ExpireAt = &t
	}
	return c
}

func copyApproval(a *models.ScopeApproval) models.ScopeApproval {
	c := *a
	if a.ExpiresAt != nil {
		t := *a.ExpiresAt
		c.ExpiresAt = &t
	}
	return c
}

// earlier orders records by creation time, then id
func earlier(ta time.Time, ida string, tb time.Time, idb string) bool {
	if !ta.Equal(tb) {
		return ta.Before(tb)
	}
	return ida < idb
}
