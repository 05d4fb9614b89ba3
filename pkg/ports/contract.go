package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/intake/pkg/domain"
)

// RunDraftStoreContract runs a suite of tests to verify that a DraftStore implementation
// adheres to the defined interface contract.
func RunDraftStoreContract(t *testing.T, store DraftStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")
	now := time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC)

	t.Run("Save and Load", func(t *testing.T) {
		s := domain.NewSession(sessionID, "event-1", "owner-1", now)
		s.Parent[domain.FieldTitle] = domain.TextValue("DevHack 2025")
		s.Parent[domain.FieldRegistrationDate] = domain.DateValue(now)
		s.Position = domain.Position{Phase: domain.PhaseChildren, Child: 0, Field: 3}
		s.Children = []domain.ChildDraft{{OrderIndex: 0, Fields: domain.Fields{
			domain.FieldPrizeAmount: domain.MoneyValue(5000),
			domain.FieldSponsors:    domain.ListValue(domain.KindExtractedList, []string{"Acme"}),
		}}}
		s.Attempts = 2

		require.NoError(t, store.Save(ctx, s), "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, s.Position, loaded.Position)
		assert.Equal(t, "owner-1", loaded.OwnerID)
		assert.Equal(t, 2, loaded.Attempts)
		assert.Equal(t, "DevHack 2025", loaded.Parent.Text(domain.FieldTitle))
		reg, ok := loaded.Parent.Time(domain.FieldRegistrationDate)
		assert.True(t, ok)
		assert.True(t, reg.Equal(now))
		require.Len(t, loaded.Children, 1)
		prize, _ := loaded.Children[0].Fields.Amount(domain.FieldPrizeAmount)
		assert.Equal(t, 5000.0, prize)
		assert.Equal(t, []string{"Acme"}, loaded.Children[0].Fields.List(domain.FieldSponsors))
	})

	t.Run("Loaded copy is detached", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Parent[domain.FieldTitle] = domain.TextValue("Mutated")

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "DevHack 2025", again.Parent.Text(domain.FieldTitle))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, domain.NewSession(sessionID, "event-1", "owner-1", now)))
		require.NoError(t, store.Delete(ctx, sessionID), "Delete should not return error")

		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, domain.NewSession(id1, "e1", "o", now))
		_ = store.Save(ctx, domain.NewSession(id2, "e2", "o", now))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
