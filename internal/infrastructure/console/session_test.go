package console

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresURLs(t *testing.T) {
	_, err := New(Config{LoginURL: "https://admin.example.com/login"}, nil)
	assert.Error(t, err)

	c, err := New(Config{LoginURL: "https://admin.example.com/login", OrdersURL: "https://admin.example.com/orders"}, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultScrapeWait, c.config.ScrapeWait)
	assert.Equal(t, defaultDialogWait, c.config.DialogWait)
	assert.Equal(t, defaultSessionTimeout, c.config.Timeout)
	assert.NotEmpty(t, c.allocatorOptions())
}

func TestDashboardReached(t *testing.T) {
	assert.True(t, dashboardReached("https://admin.example.com/main?x=1", "https://admin.example.com/main"))
	assert.False(t, dashboardReached("https://admin.example.com/login", "https://admin.example.com/main"))
	assert.False(t, dashboardReached("", "https://admin.example.com/main"))
}

func TestAwaitDialogs(t *testing.T) {
	t.Run("collects both dialogs", func(t *testing.T) {
		ch := make(chan string, 2)
		ch <- "Mark selected orders as shipped?"
		ch <- "Done"

		messages, err := awaitDialogs(context.Background(), ch, 2, time.Second)

		require.NoError(t, err)
		assert.Equal(t, []string{"Mark selected orders as shipped?", "Done"}, messages)
	})

	t.Run("times out on a missing dialog", func(t *testing.T) {
		ch := make(chan string, 1)
		ch <- "Mark selected orders as shipped?"

		messages, err := awaitDialogs(context.Background(), ch, 2, 10*time.Millisecond)

		require.Error(t, err)
		assert.Len(t, messages, 1)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := awaitDialogs(ctx, make(chan string), 2, time.Second)

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDrain(t *testing.T) {
	ch := make(chan string, 3)
	ch <- "stale"
	ch <- "stale"

	drain(ch)

	assert.Empty(t, ch)
}
