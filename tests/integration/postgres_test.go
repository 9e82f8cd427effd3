//go:build integration

package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/BradenHooton/amgate/internal/clock"
	"github.com/BradenHooton/amgate/internal/models"
	"github.com/BradenHooton/amgate/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var testDB *TestDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	db, err := SetupTestDatabase(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "integration setup failed: %v\n", err)
		os.Exit(1)
	}
	testDB = db

	code := m.Run()

	if err := db.Teardown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "integration teardown failed: %v\n", err)
	}
	os.Exit(code)
}

func setup(t *testing.T) (*Stores, *clock.Fixed) {
	t.Helper()
	require.NoError(t, testDB.CleanupTables(context.Background()))
	clk := clock.NewFixed(Epoch)
	return testDB.NewStores(clk), clk
}

func TestPostgres_LoginAttemptVisibility(t *testing.T) {
	stores, clk := setup(t)
	ctx := context.Background()
	id := TestIdentity("visibility")

	_, err := stores.LoginAttempts.Create(ctx, &models.LoginAttempt{
		Domain:           id.Domain,
		Client:           id.Client,
		IdentityProvider: id.IdentityProvider,
		Username:         id.Username,
		Attempts:         1,
		ExpireAt:         ExpiresIn(time.Minute),
	})
	require.NoError(t, err)

	got, err := stores.LoginAttempts.FindByCriteria(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Attempts)

	clk.Advance(time.Minute)

	got, err = stores.LoginAttempts.FindByCriteria(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got, "expired attempt must be invisible")

	rows, err := testDB.CountRows(ctx, "login_attempts")
	require.NoError(t, err)
	assert.Equal(t, 1, rows, "expiry hides the row without deleting it")

	n, err := stores.AttemptRepo.DeleteExpired(ctx, clk.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPostgres_LoginAttemptEarliestWins(t *testing.T) {
	stores, clk := setup(t)
	ctx := context.Background()
	id := TestIdentity("ordering")

	for i := 1; i <= 3; i++ {
		_, err := stores.LoginAttempts.Create(ctx, &models.LoginAttempt{
			Domain:   id.Domain,
			Username: id.Username,
			Attempts: i,
		})
		require.NoError(t, err)
		clk.Advance(time.Second)
	}

	got, err := stores.LoginAttempts.FindByCriteria(ctx, models.LoginAttemptCriteria{Domain: id.Domain, Username: id.Username})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Attempts)
}

func TestPostgres_LoginAttemptDeleteGuard(t *testing.T) {
	stores, _ := setup(t)
	ctx := context.Background()

	_, err := stores.LoginAttempts.Create(ctx, &models.LoginAttempt{Domain: "d1", Username: "bob"})
	require.NoError(t, err)

	_, err = stores.LoginAttempts.DeleteByCriteria(ctx, models.LoginAttemptCriteria{})
	assert.ErrorIs(t, err, models.ErrInvalidQuery)

	rows, err := testDB.CountRows(ctx, "login_attempts")
	require.NoError(t, err)
	assert.Equal(t, 1, rows)
}

func TestPostgres_UpsertConcurrentWritersConverge(t *testing.T) {
	stores, _ := setup(t)
	ctx := context.Background()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 16; i++ {
		status := models.ApprovalApproved
		if i%2 == 1 {
			status = models.ApprovalDenied
		}
		g.Go(func() error {
			a := TestApproval("d1", "u1", "c1", "read")
			a.Status = status
			_, err := stores.ScopeApprovals.Upsert(gctx, a)
			return err
		})
	}
	require.NoError(t, g.Wait())

	rows, err := testDB.CountRows(ctx, "scope_approvals")
	require.NoError(t, err)
	assert.Equal(t, 1, rows)
}

func TestPostgres_ConcurrentLoginFailuresCountOnce(t *testing.T) {
	stores, clk := setup(t)
	ctx := context.Background()
	id := TestIdentity("lockout")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lockout := services.NewLockoutService(stores.LoginAttempts, services.LockoutConfig{
		MaxAttempts:     5,
		ResetWindow:     15 * time.Minute,
		LockoutDuration: time.Hour,
	}, clk, nil, logger)

	const failures = 12
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < failures; i++ {
		g.Go(func() error {
			_, _, err := lockout.LoginFailed(gctx, id)
			return err
		})
	}
	require.NoError(t, g.Wait())

	rows, err := testDB.CountRows(ctx, "login_attempts")
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	locked, attempt, err := lockout.CheckAccount(ctx, id)
	require.NoError(t, err)
	assert.True(t, locked)
	assert.Equal(t, failures, attempt.Attempts)
}

func TestPostgres_UpsertKeepsIdentity(t *testing.T) {
	stores, clk := setup(t)
	ctx := context.Background()

	first, err := stores.ScopeApprovals.Upsert(ctx, TestApproval("d1", "u1", "c1", "read"))
	require.NoError(t, err)

	clk.Advance(time.Hour)
	denied := TestApproval("d1", "u1", "c1", "read")
	denied.Status = models.ApprovalDenied
	second, err := stores.ScopeApprovals.Upsert(ctx, denied)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	assert.True(t, second.UpdatedAt.Equal(Epoch.Add(time.Hour)))
	assert.Equal(t, models.ApprovalDenied, second.Status)
}

func TestPostgres_ApprovalNamedDeletes(t *testing.T) {
	stores, clk := setup(t)
	ctx := context.Background()

	for _, a := range []*models.ScopeApproval{
		TestApproval("d1", "u1", "c1", "read"),
		TestApproval("d1", "u1", "c2", "read"),
		TestApproval("d1", "u2", "c1", "write"),
		TestApproval("d2", "u1", "c1", "read"),
	} {
		_, err := stores.ScopeApprovals.Create(ctx, a)
		require.NoError(t, err)
	}

	expired := TestApproval("d1", "u1", "c3", "read")
	expired.ExpiresAt = ExpiresIn(time.Second)
	_, err := stores.ScopeApprovals.Create(ctx, expired)
	require.NoError(t, err)
	clk.Advance(time.Minute)

	live, err := stores.ScopeApprovals.FindByDomainAndUser(ctx, "d1", "u1")
	require.NoError(t, err)
	assert.Len(t, live, 2)

	n, err := stores.ScopeApprovals.DeleteByDomainAndScope(ctx, "d1", "read")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n, "expired rows are deleted too")

	_, err = stores.ScopeApprovals.DeleteByDomainAndUser(ctx, "d1", "")
	assert.ErrorIs(t, err, models.ErrInvalidQuery)

	n, err = stores.ScopeApprovals.DeleteByDomainAndUserAndClient(ctx, "d1", "u2", "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err := testDB.CountRows(ctx, "scope_approvals")
	require.NoError(t, err)
	assert.Equal(t, 1, rows)
}
