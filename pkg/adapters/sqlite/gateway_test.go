package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/ports/tests"
)

func newGateway(t *testing.T, dsn string) *Gateway {
	t.Helper()
	gw, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}

func TestGateway_Contract(t *testing.T) {
	tests.GatewayContractTest(t, newGateway(t, ":memory:"))
}

func TestGateway_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "intake.db")
	now := time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC)

	gw, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, gw.CreateDraft(ctx,
		&domain.Event{ID: "ev-1", OwnerID: "owner-1", Fields: domain.Fields{}, CreatedAt: now, UpdatedAt: now},
		&domain.SessionRecord{ID: "s-1", EventID: "ev-1", OwnerID: "owner-1", Phase: domain.PhaseParent, UpdatedAt: now},
	))
	require.NoError(t, gw.CommitParentFields(ctx, "ev-1", domain.Fields{
		domain.FieldTitle:       domain.TextValue("DevHack"),
		domain.FieldTotalBudget: domain.MoneyValue(30000),
	}))
	require.NoError(t, gw.UpsertChild(ctx, "ev-1", 0, domain.Fields{
		domain.FieldTitle:       domain.TextValue("AI"),
		domain.FieldPrizeAmount: domain.MoneyValue(1000),
	}))
	require.NoError(t, gw.Close())

	reopened := newGateway(t, path)
	ev, err := reopened.LoadEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, domain.EventDraft, ev.Status)
	assert.Equal(t, domain.BudgetCurrency, ev.BudgetCurrency)
	assert.Equal(t, "DevHack", ev.Fields.Text(domain.FieldTitle))
	assert.True(t, ev.CreatedAt.Equal(now))
	require.Len(t, ev.Challenges, 1)
	assert.Equal(t, 1000.0, ev.TotalPrizes())

	rec, err := reopened.LoadSession(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseParent, rec.Phase)
}

func TestGateway_BudgetRejectionRollsBack(t *testing.T) {
	ctx := context.Background()
	gw := newGateway(t, ":memory:")
	now := time.Now()
	require.NoError(t, gw.CreateDraft(ctx,
		&domain.Event{ID: "ev-2", OwnerID: "o", Fields: domain.Fields{domain.FieldTotalBudget: domain.MoneyValue(20000)}, CreatedAt: now, UpdatedAt: now},
		&domain.SessionRecord{ID: "s-2", EventID: "ev-2", OwnerID: "o", Phase: domain.PhaseChildren, UpdatedAt: now},
	))

	err := gw.UpsertChild(ctx, "ev-2", 0, domain.Fields{domain.FieldPrizeAmount: domain.MoneyValue(20001)})
	assert.ErrorIs(t, err, domain.ErrBudgetExceeded)

	ev, err := gw.LoadEvent(ctx, "ev-2")
	require.NoError(t, err)
	assert.Empty(t, ev.Challenges)
}

func TestGateway_TypedColumns(t *testing.T) {
	ctx := context.Background()
	gw := newGateway(t, ":memory:")
	now := time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC)
	reg := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, gw.CreateDraft(ctx,
		&domain.Event{ID: "ev-3", OwnerID: "o", CreatedAt: now, UpdatedAt: now},
		&domain.SessionRecord{ID: "s-3", EventID: "ev-3", OwnerID: "o", Phase: domain.PhaseParent, UpdatedAt: now},
	))
	require.NoError(t, gw.CommitParentFields(ctx, "ev-3", domain.Fields{
		domain.FieldTitle:            domain.TextValue("DevHack"),
		domain.FieldRegistrationDate: domain.DateValue(reg),
		domain.FieldTotalBudget:      domain.MoneyValue(30000),
		domain.FieldChallengeCount:   domain.CountValue(3),
		domain.FieldBanner:           domain.SkippedMedia(),
	}))
	require.NoError(t, gw.UpsertChild(ctx, "ev-3", 0, domain.Fields{
		domain.FieldTitle:           domain.TextValue("AI"),
		domain.FieldPrizeAmount:     domain.MoneyValue(1000),
		domain.FieldJudgingCriteria: domain.ListValue(domain.KindStringList, []string{"A", "B", "C", "D"}),
	}))

	var (
		budget float64
		count  int
		banner sql.NullString
	)
	require.NoError(t, gw.db.QueryRowContext(ctx,
		`SELECT total_budget, challenge_count, banner FROM events WHERE id = ?`, "ev-3",
	).Scan(&budget, &count, &banner))
	assert.Equal(t, 30000.0, budget)
	assert.Equal(t, 3, count)
	assert.False(t, banner.Valid, "skipped media is NULL")

	var criteria string
	require.NoError(t, gw.db.QueryRowContext(ctx,
		`SELECT judging_criteria FROM challenges WHERE event_id = ? AND order_index = 0`, "ev-3",
	).Scan(&criteria))
	assert.JSONEq(t, `["A","B","C","D"]`, criteria)

	ev, err := gw.LoadEvent(ctx, "ev-3")
	require.NoError(t, err)
	got, ok := ev.Fields.Time(domain.FieldRegistrationDate)
	require.True(t, ok)
	assert.True(t, got.Equal(reg))
	n, ok := ev.Fields.Count(domain.FieldChallengeCount)
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"A", "B", "C", "D"}, ev.Challenges[0].Fields.List(domain.FieldJudgingCriteria))
	_, stored := ev.Challenges[0].Fields[domain.FieldSponsors]
	assert.False(t, stored)
}
