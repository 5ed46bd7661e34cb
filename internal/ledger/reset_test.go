package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MiKapsDev/Lion-City/internal/events"
	"github.com/MiKapsDev/Lion-City/internal/kvstore"
)

func TestResetAllClearsEveryKey(t *testing.T) {
	f := newFixture(t)
	f.svc.AddPoints(50, SourceManual, "")
	f.svc.ActivateBoost(0)
	f.svc.MarkClaimedToday("coffee")
	require.NoError(t, f.store.Set(KeyDiscountUses, `{"smoothie":2}`))
	require.NoError(t, f.store.Set(KeyGroups, `[{"id":"group-1","name":"Crew","members":["a@b.de"]}]`))
	require.NoError(t, f.store.Set("unrelated", "kept"))

	resets := 0
	f.bus.Subscribe(func(events.Event) {
		resets++
		assert.Equal(t, 0, f.svc.Balance())
	}, events.Reset)

	f.svc.ResetAll()

	assert.Equal(t, 1, resets)
	for _, k := range Keys {
		_, err := f.store.Get(k)
		assert.ErrorIs(t, err, kvstore.ErrNotFound, "key %s should be cleared", k)
	}
	v, err := f.store.Get("unrelated")
	require.NoError(t, err)
	assert.Equal(t, "kept", v)
	assert.False(t, f.svc.IsBoostActive())
	assert.Empty(t, f.svc.Transactions())
	assert.Equal(t, "Demo reset.", f.lastMessage(t).Text)
}

func TestSnapshotRestore(t *testing.T) {
	f := newFixture(t)
	f.svc.AddPoints(42, SourceManual, "")

	snap, err := f.svc.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "42", snap[KeyBalance])
	assert.Contains(t, snap, KeyTransactions)
	assert.NotContains(t, snap, KeyBoostExpiry)

	f.svc.ResetAll()
	require.NoError(t, f.svc.Restore(snap))
	assert.Equal(t, 42, f.svc.Balance())
	assert.Len(t, f.svc.Transactions(), 1)
}

func TestRestoreRejectsUnknownKeys(t *testing.T) {
	f := newFixture(t)
	f.svc.AddPoints(5, SourceManual, "")
	err := f.svc.Restore(map[string]string{"balance": "9", "loyaltyPoints": "1"})
	assert.Error(t, err)
	assert.Equal(t, 5, f.svc.Balance(), "nothing is written when validation fails")
}
