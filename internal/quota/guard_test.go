package quota

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"translation_gateway/internal/models"
)

type fakeStateSource struct {
	states map[string]*models.QuotaState
	err    error
}

func (f *fakeStateSource) GetQuotaState(ctx context.Context, workspaceID string) (*models.QuotaState, error) {
	if f.err != nil {
		return nil, f.err
	}
	state, ok := f.states[workspaceID]
	if !ok {
		return nil, errors.New("workspace not found")
	}
	return state, nil
}

func setupGuard(t *testing.T, states map[string]*models.QuotaState) (*Guard, *fakeStateSource, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	source := &fakeStateSource{states: states}
	return NewGuard(client, source), source, mr
}

func TestGuardManagedTier(t *testing.T) {
	guard, _, _ := setupGuard(t, map[string]*models.QuotaState{
		"ws1": {WorkspaceID: "ws1", Tier: models.TierManaged, MonthlyLimitUSD: 10},
	})
	ctx := context.Background()

	t.Run("reservations summing exactly to the limit are all admitted", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			require.NoError(t, guard.CheckAndReserve(ctx, "ws1", 1.0))
		}

		spent, err := guard.Spent(ctx, "ws1")
		require.NoError(t, err)
		assert.InDelta(t, 10.0, spent, 1e-9)
	})

	t.Run("the reservation pushing over the limit is denied", func(t *testing.T) {
		err := guard.CheckAndReserve(ctx, "ws1", 0.01)
		var denied *models.AdmissionDeniedError
		require.ErrorAs(t, err, &denied)
		assert.Equal(t, models.DeniedQuota, denied.Reason)
		assert.InDelta(t, 0.0, denied.Remaining, 1e-9)
	})

	t.Run("denied reservations do not consume budget", func(t *testing.T) {
		spent, err := guard.Spent(ctx, "ws1")
		require.NoError(t, err)
		assert.InDelta(t, 10.0, spent, 1e-9)
	})
}

func TestGuardTrialTier(t *testing.T) {
	guard, _, _ := setupGuard(t, map[string]*models.QuotaState{
		"trial-ws": {
			WorkspaceID:      "trial-ws",
			Tier:             models.TierTrial,
			TrialCreditsUSD:  1.0,
			TrialCreditsUsed: 0.75,
		},
	})
	ctx := context.Background()

	// The counter seeds from the durable used-credits figure.
	require.NoError(t, guard.CheckAndReserve(ctx, "trial-ws", 0.25))

	err := guard.CheckAndReserve(ctx, "trial-ws", 0.01)
	var denied *models.AdmissionDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, models.DeniedQuota, denied.Reason)
}

func TestGuardUnlimitedTier(t *testing.T) {
	guard, _, _ := setupGuard(t, map[string]*models.QuotaState{
		"big": {WorkspaceID: "big", Tier: models.TierManaged, MonthlyLimitUSD: 0},
	})
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		require.NoError(t, guard.CheckAndReserve(ctx, "big", 100))
	}

	// Spend is still tracked for reporting.
	spent, err := guard.Spent(ctx, "big")
	require.NoError(t, err)
	assert.InDelta(t, 5000.0, spent, 1e-6)
}

func TestGuardRelease(t *testing.T) {
	guard, _, _ := setupGuard(t, map[string]*models.QuotaState{
		"ws2": {WorkspaceID: "ws2", Tier: models.TierBYOA, MonthlyLimitUSD: 5},
	})
	ctx := context.Background()

	require.NoError(t, guard.CheckAndReserve(ctx, "ws2", 5))
	require.Error(t, guard.CheckAndReserve(ctx, "ws2", 1))

	// A failed chain gives its reservation back.
	guard.Release(ctx, "ws2", 5)
	require.NoError(t, guard.CheckAndReserve(ctx, "ws2", 5))
}

func TestGuardFailsClosed(t *testing.T) {
	ctx := context.Background()

	t.Run("state source unreachable", func(t *testing.T) {
		guard, source, _ := setupGuard(t, nil)
		source.err = errors.New("postgres down")

		err := guard.CheckAndReserve(ctx, "ws3", 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStateUnavailable)
	})

	t.Run("redis unreachable", func(t *testing.T) {
		guard, _, mr := setupGuard(t, map[string]*models.QuotaState{
			"ws4": {WorkspaceID: "ws4", Tier: models.TierManaged, MonthlyLimitUSD: 10},
		})
		mr.Close()

		err := guard.CheckAndReserve(ctx, "ws4", 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStateUnavailable)
	})
}
