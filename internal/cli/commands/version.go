package commands

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/portsql/pkg/adapter"
	"github.com/leapstack-labs/portsql/pkg/dialect"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Print the portsql version with the registered adapters and dialects.`,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "portsql v%s (%s)\n", version, runtime.Version())
			_, _ = fmt.Fprintf(w, "Adapters: %s\n", strings.Join(adapter.ListAdapters(), ", "))
			_, _ = fmt.Fprintf(w, "Dialects: %s\n", strings.Join(dialect.List(), ", "))
		},
	}
}
