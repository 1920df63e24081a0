// Package naming derives and validates workflow branch names.
// Derivation is deterministic: the same description always yields the same
// branch name, so concurrent launches with the same description collide on
// the session store's uniqueness check instead of silently diverging.
package naming

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxBranchNameLen is the hard limit on generated and user-supplied branch names.
const MaxBranchNameLen = 80

// DefaultType is the branch type prefix used when none is given.
const DefaultType = "feature"

// branchNameRegex is the policy every workflow branch must satisfy.
var branchNameRegex = regexp.MustCompile(`^(feature|bugfix|hotfix|release|chore|docs|test|refactor)/[a-z0-9-]+$`)

// nonSlugRegex matches runs of characters that cannot appear in a slug.
var nonSlugRegex = regexp.MustCompile(`[^a-z0-9]+`)

// Validate checks a branch name against the workflow policy.
func Validate(name string) error {
	if name == "" {
		return fmt.Errorf("branch name cannot be empty")
	}
	if len(name) > MaxBranchNameLen {
		return fmt.Errorf("branch name %q exceeds %d characters", name, MaxBranchNameLen)
	}
	if !branchNameRegex.MatchString(name) {
		return fmt.Errorf("branch name %q does not match type/kebab-case policy (types: feature, bugfix, hotfix, release, chore, docs, test, refactor)", name)
	}
	return nil
}

// FromDescription derives a branch name from free-form description text.
// The result is "<branchType>/<kebab-description>", truncated to
// MaxBranchNameLen at a word boundary. branchType defaults to "feature".
func FromDescription(description, branchType string) (string, error) {
	if branchType == "" {
		branchType = DefaultType
	}
	slug := Slug(description)
	if slug == "" {
		return "", fmt.Errorf("description %q yields an empty slug", description)
	}

	name := branchType + "/" + slug
	if len(name) > MaxBranchNameLen {
		name = truncateAtWordBoundary(name, MaxBranchNameLen)
	}
	if err := Validate(name); err != nil {
		return "", err
	}
	return name, nil
}

// Slug converts free-form text to lowercase kebab-case.
func Slug(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = nonSlugRegex.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// TypeOf returns the type prefix of a valid branch name ("feature/x" -> "feature").
// Returns empty string if the name has no slash.
func TypeOf(name string) string {
	idx := strings.IndexByte(name, '/')
	if idx < 0 {
		return ""
	}
	return name[:idx]
}

// truncateAtWordBoundary cuts name to at most limit characters, preferring
// to cut at the last dash so the result never ends mid-word. A trailing
// dash is always stripped.
func truncateAtWordBoundary(name string, limit int) string {
	if len(name) <= limit {
		return name
	}
	cut := name[:limit]
	if idx := strings.LastIndexByte(cut, '-'); idx > strings.IndexByte(cut, '/')+1 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, "-")
}
