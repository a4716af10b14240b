package tracker

import (
	"fmt"

	"github.com/repolens/repolens/internal/diff"
)

// FileOutput is the shaped payload for one file. Fields are omitted
// when the mode calls for status only.
type FileOutput struct {
	Path   string              `json:"path"`
	Status diff.Classification `json:"status"`

	Content   string `json:"content,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`

	Diff string `json:"diff,omitempty"`

	// DiffUnavailable marks a modified file whose prior content was not
	// retained; Content then carries the full current version instead
	// of a misleading diff against nothing
	DiffUnavailable bool `json:"diff_unavailable,omitempty"`

	Size int64  `json:"size,omitempty"`
	Hash string `json:"hash,omitempty"`
}

// shape applies the update-mode table to one classification. The second
// return value is false when the mode omits the file entirely.
func shape(res diff.Result, content []byte, mode UpdateMode, truncateBytes int) (FileOutput, bool) {
	out := FileOutput{
		Path:   res.Path,
		Status: res.Classification,
	}

	if res.Classification == diff.Deleted {
		// Status only in every mode
		return out, true
	}

	out.Size = res.Fingerprint.Size
	out.Hash = res.Fingerprint.Hash

	switch mode {
	case ModeSmart:
		switch res.Classification {
		case diff.New:
			out.Content = string(content)
		case diff.Modified:
			applyDiff(&out, res, content)
		}

	case ModeDiffsOnly:
		switch res.Classification {
		case diff.New:
			out.Content, out.Truncated = truncate(content, truncateBytes)
		case diff.Modified:
			applyDiff(&out, res, content)
		}

	case ModeFullContent:
		out.Content = string(content)

	case ModeChangedFilesOnly:
		if res.Classification == diff.Unchanged {
			return FileOutput{}, false
		}
		out.Content = string(content)
	}

	return out, true
}

func applyDiff(out *FileOutput, res diff.Result, content []byte) {
	if res.DiffUnavailable {
		out.DiffUnavailable = true
		out.Content = string(content)
		return
	}
	out.Diff = res.Diff
}

func truncate(content []byte, cap int) (string, bool) {
	if len(content) <= cap {
		return string(content), false
	}
	return fmt.Sprintf("%s\n... [truncated %d bytes]", content[:cap], len(content)-cap), true
}
