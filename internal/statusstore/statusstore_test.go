package statusstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zeebrow/ec2-price-tracker/internal/statusstore"
)

func TestMemoryStoreStartsIdle(t *testing.T) {
	s := statusstore.NewMemoryStore()
	status, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, statusstore.Idle, status)
}

func TestMemoryStoreWriteThenRead(t *testing.T) {
	s := statusstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, statusstore.Running))
	status, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, statusstore.Running, status)
}
