// Package version carries build identity injected via -ldflags.
package version

import "fmt"

var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// String renders the full build identity line.
func String() string {
	return fmt.Sprintf("helper-mcp %s (commit=%s, date=%s)", Version, Commit, Date)
}
