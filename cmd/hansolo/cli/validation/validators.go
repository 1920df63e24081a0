// Package validation provides input validation functions for the hansolo CLI.
// This package has no dependencies to avoid import cycles.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// pathSafeRegex matches alphanumeric characters, underscores, and hyphens only.
// Used to validate IDs that will be used in file paths.
var pathSafeRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateSessionID validates that a session ID contains only safe characters
// for file paths. Session IDs are UUIDs, so this also rejects anything that
// could traverse out of the sessions directory.
func ValidateSessionID(id string) error {
	if id == "" {
		return errors.New("session ID cannot be empty")
	}
	if !pathSafeRegex.MatchString(id) {
		return fmt.Errorf("invalid session ID %q: must be alphanumeric with underscores/hyphens only", id)
	}
	return nil
}

// ValidateBranchRef validates that a branch name is safe to interpolate into
// git commands and file paths. This is a looser check than the workflow
// branch-name policy in the naming package; it only guards against injection.
func ValidateBranchRef(name string) error {
	if name == "" {
		return errors.New("branch name cannot be empty")
	}
	if strings.ContainsAny(name, " \t\n~^:?*[\\") {
		return fmt.Errorf("invalid branch name %q: contains characters git refuses in refnames", name)
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("invalid branch name %q: cannot start with a dash", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("invalid branch name %q: cannot contain '..'", name)
	}
	return nil
}

// ValidateToolName validates a workflow tool name for audit entries.
func ValidateToolName(name string) error {
	if name == "" {
		return errors.New("tool name cannot be empty")
	}
	if !pathSafeRegex.MatchString(name) {
		return fmt.Errorf("invalid tool name %q", name)
	}
	return nil
}
