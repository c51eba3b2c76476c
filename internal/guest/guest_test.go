package guest_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kisaansahayak/sahayak/internal/config"
	"github.com/kisaansahayak/sahayak/internal/guest"
	"github.com/kisaansahayak/sahayak/pkg/contracts"
)

func runCounterSuite(t *testing.T, c contracts.GuestCounter) {
	ctx := context.Background()
	id := "guest-" + uuid.NewString()

	n, err := c.Count(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "unknown guest starts at zero")

	for want := 1; want <= 3; want++ {
		got, err := c.Increment(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	n, err = c.Count(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	other, err := c.Count(ctx, "guest-"+uuid.NewString())
	require.NoError(t, err)
	assert.Equal(t, 0, other)
}

func TestMemoryCounter(t *testing.T) {
	runCounterSuite(t, guest.NewMemoryCounter())
}

func TestMemoryCounter_Concurrent(t *testing.T) {
	c := guest.NewMemoryCounter()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Increment(ctx, "g")
		}()
	}
	wg.Wait()

	n, err := c.Count(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, 50, n)
}

func TestRedisCounter(t *testing.T) {
	addr := os.Getenv("SAHAYAK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SAHAYAK_TEST_REDIS_ADDR not set")
	}
	c, err := guest.NewRedisCounter(context.Background(), config.RedisConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	runCounterSuite(t, c)
}

func TestRemaining(t *testing.T) {
	tests := []struct {
		limit, used, want int
	}{
		{5, 0, 5},
		{5, 4, 1},
		{5, 5, 0},
		{5, 9, 0},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := guest.Remaining(tt.limit, tt.used); got != tt.want {
			t.Errorf("Remaining(%d, %d) = %d, want %d", tt.limit, tt.used, got, tt.want)
		}
	}
}
