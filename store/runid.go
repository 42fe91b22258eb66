package store

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

// ValidateRunID rejects run ids that cannot be embedded in storage keys.
func ValidateRunID(runID string) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidRunID)
	}
	if i := strings.IndexAny(runID, "{}*?\n\r"); i >= 0 {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidRunID, runID, runID[i])
	}
	return nil
}

// SanitizeRunID maps a run id to a string that is safe as a file name.
// Different ids may map to the same name; stores keep the original id in
// each record to tell them apart.
func SanitizeRunID(runID string) string {
	var b strings.Builder
	for _, r := range runID {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteByte('_')
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	name := strings.Trim(strings.TrimSpace(b.String()), "._")
	if name == "" {
		h := fnv.New32a()
		_, _ = h.Write([]byte(runID))
		return fmt.Sprintf("run-%08x", h.Sum32())
	}
	return name
}
