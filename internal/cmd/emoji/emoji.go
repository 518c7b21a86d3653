// Package emoji provides symbol constants for CLI output.
package emoji

// Status symbols shared by every command.
const (
	// Success marks a completed check.
	Success = "✓"

	// Error marks a failed check.
	Error = "✗"

	// Warning marks a non-fatal problem.
	Warning = "!"
)
