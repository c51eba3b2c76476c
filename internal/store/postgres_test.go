package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kisaansahayak/sahayak/internal/store"
)

func TestPostgresStore_Conversations(t *testing.T) {
	url := os.Getenv("SAHAYAK_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SAHAYAK_TEST_DATABASE_URL not set")
	}

	s, err := store.NewPostgresStore(context.Background(), url, 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Ping(context.Background()))
	runConversationSuite(t, s)
}
