package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/leapstack-labs/portsql/pkg/adapters/oracle"
	_ "github.com/leapstack-labs/portsql/pkg/adapters/sqlite"
)

func TestVersionCommand(t *testing.T) {
	tests := []struct {
		version string
		want    []string
	}{
		{"0.1.0", []string{"portsql v0.1.0 (go", "Adapters: ", "sqlite", "Dialects: ", "oracle11"}},
		{"dev", []string{"portsql vdev"}},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			cmd := NewVersionCommand(tt.version)
			var buf bytes.Buffer
			cmd.SetOut(&buf)
			cmd.SetArgs([]string{})

			require.NoError(t, cmd.Execute())
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestVersionCommand_ListsCanonicalNamesOnly(t *testing.T) {
	cmd := NewVersionCommand("test")
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.NotContains(t, buf.String(), "sqlite3", "aliases are not listed")
}
