package tracker

import "fmt"

// UpdateMode selects how much content is emitted per file
// classification. The set is closed: an unrecognized mode is a
// validation error, never a silent fallback.
type UpdateMode string

const (
	// ModeSmart emits full content for new files, diffs for modified
	// ones, and status lines otherwise
	ModeSmart UpdateMode = "smart"

	// ModeDiffsOnly emits truncated content for new files and diffs for
	// modified ones
	ModeDiffsOnly UpdateMode = "diffs_only"

	// ModeFullContent emits full content for every present file
	ModeFullContent UpdateMode = "full_content"

	// ModeChangedFilesOnly emits full content for changed files and
	// omits unchanged ones entirely
	ModeChangedFilesOnly UpdateMode = "changed_files_only"
)

// ConfigurationError indicates a malformed argument, surfaced to the
// caller with the offending value.
type ConfigurationError struct {
	Field string
	Value string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
}

// ParseMode validates a mode string. The empty string resolves to the
// given fallback so operations can carry different defaults.
func ParseMode(s string, fallback UpdateMode) (UpdateMode, error) {
	if s == "" {
		return fallback, nil
	}
	switch UpdateMode(s) {
	case ModeSmart, ModeDiffsOnly, ModeFullContent, ModeChangedFilesOnly:
		return UpdateMode(s), nil
	}
	return "", &ConfigurationError{Field: "update_mode", Value: s}
}
