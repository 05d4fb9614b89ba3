// Package tests holds reusable contract suites for port implementations.
package tests

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/ports"
)

var seq atomic.Int64

func newDraft(t *testing.T, gw ports.Gateway) (*domain.Event, *domain.SessionRecord) {
	t.Helper()
	now := time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC)
	id := fmt.Sprintf("contract-%d-%d", time.Now().UnixNano(), seq.Add(1))
	ev := &domain.Event{
		ID:             "event-" + id,
		OwnerID:        "owner-1",
		Status:         domain.EventDraft,
		BudgetCurrency: domain.BudgetCurrency,
		Fields:         domain.Fields{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	rec := &domain.SessionRecord{
		ID:        "session-" + id,
		EventID:   ev.ID,
		OwnerID:   ev.OwnerID,
		Phase:     domain.PhaseParent,
		Data:      []byte(`{}`),
		UpdatedAt: now,
	}
	require.NoError(t, gw.CreateDraft(context.Background(), ev, rec))
	return ev, rec
}

func childFields(title string, prize float64) domain.Fields {
	return domain.Fields{
		domain.FieldTitle:           domain.TextValue(title),
		domain.FieldDescription:     domain.TextValue("Build something"),
		domain.FieldPrizeAmount:     domain.MoneyValue(prize),
		domain.FieldSponsors:        domain.ListValue(domain.KindExtractedList, []string{"Acme"}),
		domain.FieldJudgingCriteria: domain.ListValue(domain.KindStringList, []string{"Innovation", "Impact", "UX", "Execution"}),
		domain.FieldResources:       domain.ListValue(domain.KindExtractedList, nil),
	}
}

// GatewayContractTest is a reusable test suite that verifies if an adapter complies with ports.Gateway.
func GatewayContractTest(t *testing.T, gw ports.Gateway) {
	ctx := context.Background()
	reg := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	t.Run("CreateDraft", func(t *testing.T) {
		ev, rec := newDraft(t, gw)

		loaded, err := gw.LoadEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.EventDraft, loaded.Status)
		assert.Equal(t, "owner-1", loaded.OwnerID)
		assert.Equal(t, domain.BudgetCurrency, loaded.BudgetCurrency)
		assert.Empty(t, loaded.Challenges)

		sess, err := gw.LoadSession(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, ev.ID, sess.EventID)
		assert.Equal(t, domain.PhaseParent, sess.Phase)
	})

	t.Run("Not Found", func(t *testing.T) {
		_, err := gw.LoadEvent(ctx, "missing-event")
		assert.ErrorIs(t, err, domain.ErrEventNotFound)
		_, err = gw.LoadSession(ctx, "missing-session")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
		err = gw.UpsertChild(ctx, "missing-event", 0, childFields("x", 1))
		assert.ErrorIs(t, err, domain.ErrEventNotFound)
	})

	t.Run("CommitParentFields is additive", func(t *testing.T) {
		ev, _ := newDraft(t, gw)

		require.NoError(t, gw.CommitParentFields(ctx, ev.ID, domain.Fields{
			domain.FieldTitle:            domain.TextValue("DevHack 2025"),
			domain.FieldOrganization:     domain.TextValue("Acme"),
			domain.FieldRegistrationDate: domain.DateValue(reg),
			domain.FieldLogo:             domain.MediaValue("https://cdn.example/logo.png"),
		}))
		require.NoError(t, gw.CommitParentFields(ctx, ev.ID, domain.Fields{
			domain.FieldTotalBudget:    domain.MoneyValue(25000),
			domain.FieldChallengeCount: domain.CountValue(2),
			domain.FieldLogo:           domain.SkippedMedia(),
			domain.FieldBanner:         domain.SkippedMedia(),
		}))

		loaded, err := gw.LoadEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, "DevHack 2025", loaded.Fields.Text(domain.FieldTitle))
		assert.Equal(t, "Acme", loaded.Fields.Text(domain.FieldOrganization))
		got, ok := loaded.Fields.Time(domain.FieldRegistrationDate)
		assert.True(t, ok)
		assert.True(t, got.Equal(reg))
		budget, _ := loaded.Fields.Amount(domain.FieldTotalBudget)
		assert.Equal(t, 25000.0, budget)
		n, _ := loaded.Fields.Count(domain.FieldChallengeCount)
		assert.Equal(t, 2, n)
		assert.Equal(t, "https://cdn.example/logo.png", loaded.Fields.Text(domain.FieldLogo))
		assert.False(t, loaded.Fields.Has(domain.FieldBanner))
		_, stored := loaded.Fields[domain.FieldBanner]
		assert.False(t, stored, "skipped media is not stored")
		_, stored = loaded.Fields[domain.FieldLogo]
		assert.True(t, stored)
	})

	t.Run("UpsertChild is idempotent", func(t *testing.T) {
		ev, _ := newDraft(t, gw)
		require.NoError(t, gw.CommitParentFields(ctx, ev.ID, domain.Fields{
			domain.FieldTotalBudget: domain.MoneyValue(20000),
		}))

		fields := childFields("AI Agents", 5000)
		require.NoError(t, gw.UpsertChild(ctx, ev.ID, 0, fields))
		require.NoError(t, gw.UpsertChild(ctx, ev.ID, 0, fields))

		loaded, err := gw.LoadEvent(ctx, ev.ID)
		require.NoError(t, err)
		require.Len(t, loaded.Challenges, 1)
		c := loaded.Challenges[0]
		assert.Equal(t, 0, c.OrderIndex)
		assert.Equal(t, domain.BudgetCurrency, c.PrizeCurrency)
		assert.Equal(t, "AI Agents", c.Fields.Text(domain.FieldTitle))
		assert.Equal(t, []string{"Acme"}, c.Fields.List(domain.FieldSponsors))
		if diff := cmp.Diff([]string{"Innovation", "Impact", "UX", "Execution"}, c.Fields.List(domain.FieldJudgingCriteria)); diff != "" {
			t.Errorf("judging criteria mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, []string{}, c.Fields.List(domain.FieldResources))
	})

	t.Run("UpsertChild replaces and orders", func(t *testing.T) {
		ev, _ := newDraft(t, gw)
		require.NoError(t, gw.CommitParentFields(ctx, ev.ID, domain.Fields{
			domain.FieldTotalBudget: domain.MoneyValue(20000),
		}))

		require.NoError(t, gw.UpsertChild(ctx, ev.ID, 1, childFields("Second", 4000)))
		require.NoError(t, gw.UpsertChild(ctx, ev.ID, 0, childFields("First", 5000)))
		require.NoError(t, gw.UpsertChild(ctx, ev.ID, 0, childFields("First v2", 6000)))

		loaded, err := gw.LoadEvent(ctx, ev.ID)
		require.NoError(t, err)
		require.Len(t, loaded.Challenges, 2)
		assert.Equal(t, "First v2", loaded.Challenges[0].Fields.Text(domain.FieldTitle))
		assert.Equal(t, "Second", loaded.Challenges[1].Fields.Text(domain.FieldTitle))
		assert.Equal(t, 10000.0, loaded.TotalPrizes())
	})

	t.Run("UpsertChild budget guard", func(t *testing.T) {
		ev, _ := newDraft(t, gw)
		require.NoError(t, gw.CommitParentFields(ctx, ev.ID, domain.Fields{
			domain.FieldTotalBudget: domain.MoneyValue(20000),
		}))

		require.NoError(t, gw.UpsertChild(ctx, ev.ID, 0, childFields("A", 15000)))
		err := gw.UpsertChild(ctx, ev.ID, 1, childFields("B", 6000))
		assert.ErrorIs(t, err, domain.ErrBudgetExceeded)
		require.NoError(t, gw.UpsertChild(ctx, ev.ID, 1, childFields("B", 5000)), "sum equal to budget is allowed")
		require.NoError(t, gw.UpsertChild(ctx, ev.ID, 0, childFields("A", 15000)), "replacing a slot does not double count it")

		loaded, err := gw.LoadEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, 20000.0, loaded.TotalPrizes())
	})

	t.Run("SaveSession", func(t *testing.T) {
		_, rec := newDraft(t, gw)
		rec.Phase = domain.PhaseChildren
		rec.Data = []byte(`{"cursor":1}`)
		rec.UpdatedAt = rec.UpdatedAt.Add(time.Hour)
		require.NoError(t, gw.SaveSession(ctx, rec))

		loaded, err := gw.LoadSession(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseChildren, loaded.Phase)
		assert.JSONEq(t, `{"cursor":1}`, string(loaded.Data))
	})

	t.Run("Concurrent readers see whole challenges", func(t *testing.T) {
		ev, _ := newDraft(t, gw)
		require.NoError(t, gw.CommitParentFields(ctx, ev.ID, domain.Fields{
			domain.FieldTotalBudget: domain.MoneyValue(100000),
		}))

		var wg sync.WaitGroup
		for i := range 10 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_ = gw.UpsertChild(ctx, ev.ID, 0, childFields(fmt.Sprintf("v%d", i), 1000))
			}(i)
		}
		for range 10 {
			loaded, err := gw.LoadEvent(ctx, ev.ID)
			require.NoError(t, err)
			for _, c := range loaded.Challenges {
				assert.Len(t, c.Fields.List(domain.FieldJudgingCriteria), 4)
			}
		}
		wg.Wait()

		loaded, err := gw.LoadEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.Len(t, loaded.Challenges, 1)
	})
}
