package adapter_test

import (
	"context"
	"testing"

	"github.com/leapstack-labs/portsql/pkg/adapter"
	"github.com/leapstack-labs/portsql/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/portsql/pkg/adapters/oracle"
	_ "github.com/leapstack-labs/portsql/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/portsql/pkg/adapters/sqlite"
)

func TestSelfRegistration(t *testing.T) {
	for _, name := range []string{"oracle", "postgres", "sqlite"} {
		assert.True(t, adapter.IsRegistered(name), "%s adapter should be auto-registered", name)
	}
}

func TestListAdapters(t *testing.T) {
	adapters := adapter.ListAdapters()

	assert.Contains(t, adapters, "oracle", "oracle should be in adapter list")
	assert.Contains(t, adapters, "postgres", "postgres should be in adapter list")
	assert.Contains(t, adapters, "sqlite", "sqlite should be in adapter list")
}

func TestIsRegistered(t *testing.T) {
	tests := []struct {
		name        string
		adapterName string
		expected    bool
	}{
		{"oracle registered", "oracle", true},
		{"postgres registered", "postgres", true},
		{"sqlite registered", "sqlite", true},
		{"unknown not registered", "unknown_db", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adapter.IsRegistered(tt.adapterName)
			assert.Equal(t, tt.expected, got, "IsRegistered(%q)", tt.adapterName)
		})
	}
}

func TestGet(t *testing.T) {
	factory, ok := adapter.Get("sqlite")
	require.True(t, ok, "Get(sqlite) should return true")
	require.NotNil(t, factory, "Get(sqlite) should return non-nil factory")

	_, ok = adapter.Get("nonexistent")
	assert.False(t, ok, "Get(nonexistent) should return false")
}

func TestNewAdapter_Success(t *testing.T) {
	ctx := context.Background()
	cfg := core.AdapterConfig{
		Type: "sqlite",
		Path: ":memory:",
	}

	adp, err := adapter.NewAdapter(cfg, nil)
	require.NoError(t, err, "NewAdapter(sqlite) failed")
	require.NotNil(t, adp, "NewAdapter(sqlite) returned nil adapter")
	assert.Equal(t, "sqlite", adp.Dialect().Name)

	require.NoError(t, adp.Connect(ctx, cfg))
	defer func() { _ = adp.Close() }()

	conn, err := adp.NewConn(ctx)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	res, err := conn.Execute(ctx, "SELECT 1 AS one", nil)
	require.NoError(t, err)
	rows, err := res.Rows.All()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0]["ONE"])
}

func TestNewAdapter_Dialects(t *testing.T) {
	tests := []struct {
		adapterType string
		dialect     string
	}{
		{"oracle", "oracle"},
		{"postgres", "postgres"},
		{"sqlite", "sqlite"},
	}

	for _, tt := range tests {
		t.Run(tt.adapterType, func(t *testing.T) {
			adp, err := adapter.NewAdapter(core.AdapterConfig{Type: tt.adapterType}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.dialect, adp.Dialect().Name)
			assert.Nil(t, adp.DB(), "adapter must not connect before Connect")
		})
	}
}

func TestNewAdapter_UnknownType(t *testing.T) {
	cfg := core.AdapterConfig{
		Type: "unknown_adapter",
	}

	_, err := adapter.NewAdapter(cfg, nil)
	require.Error(t, err, "NewAdapter(unknown_adapter) should fail")

	var unknownErr *adapter.UnknownAdapterError
	require.ErrorAs(t, err, &unknownErr)

	assert.Equal(t, "unknown_adapter", unknownErr.Type, "error type")
	assert.Contains(t, unknownErr.Available, "sqlite", "Available adapters should include sqlite")
}
