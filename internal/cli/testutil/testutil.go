// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// SetupTestProject creates a temporary directory holding a portsql.yaml that
// targets a sqlite file in the same directory, and changes into it.
// extra is appended to the target block.
func SetupTestProject(t *testing.T, extra ...string) string {
	t.Helper()

	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("target:\n  type: sqlite\n")
	fmt.Fprintf(&b, "  database: %s\n", filepath.Join(dir, "portsql.db"))
	for _, line := range extra {
		b.WriteString("  " + line + "\n")
	}
	if err := os.WriteFile(filepath.Join(dir, "portsql.yaml"), []byte(b.String()), 0o600); err != nil {
		t.Fatalf("failed to write portsql.yaml: %v", err)
	}
	t.Chdir(dir)
	return dir
}

// Run executes cmd with args and returns what it wrote to stdout and stderr.
func Run(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// AssertContains checks that the string contains the expected substring.
func AssertContains(t *testing.T, s, expected string) {
	t.Helper()
	if !strings.Contains(s, expected) {
		t.Errorf("string %q does not contain expected %q", s, expected)
	}
}

// AssertNotContains checks that the string does not contain the substring.
func AssertNotContains(t *testing.T, s, unexpected string) {
	t.Helper()
	if strings.Contains(s, unexpected) {
		t.Errorf("string %q unexpectedly contains %q", s, unexpected)
	}
}
