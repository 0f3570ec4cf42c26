package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	client, err := New(ctx, mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	type payload struct {
		Name string `json:"name"`
	}
	var out payload
	require.ErrorIs(t, GetJSON(ctx, client, "k", &out), ErrMiss)

	require.NoError(t, SetJSON(ctx, client, "k", payload{Name: "ada"}, time.Minute))
	require.NoError(t, GetJSON(ctx, client, "k", &out))
	assert.Equal(t, "ada", out.Name)
	assert.Equal(t, time.Minute, mr.TTL("k"))

	require.NoError(t, mr.Set("bad", "{"))
	assert.Error(t, GetJSON(ctx, client, "bad", &out))
}

func TestNewFailsWithoutServer(t *testing.T) {
	_, err := New(context.Background(), "127.0.0.1:1")
	assert.Error(t, err)
}
