package chatmd

import (
	"fmt"
	"path"
	"strings"
)

// Status represents the lifecycle status of a session.
type Status int

const (
	// StatusStreaming means chunks are still arriving.
	StatusStreaming Status = iota
	// StatusSettled means the final full render was published.
	StatusSettled
	// StatusAborted means the session ended on cancellation or failure.
	StatusAborted
)

// String returns the string representation of Status.
func (s Status) String() string {
	switch s {
	case StatusStreaming:
		return "streaming"
	case StatusSettled:
		return "settled"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session has ended.
func (s Status) Terminal() bool {
	return s == StatusSettled || s == StatusAborted
}

// File represents a code block extracted for saving.
type File struct {
	FileName string
	FileData []byte
	Language string
}

// ExtractFiles returns the code blocks of out as files. Names that repeat get a
// numeric suffix so every file name is unique.
func ExtractFiles(out RenderedOutput) []File {
	var files []File
	used := make(map[string]bool)
	for _, seg := range out.Segments {
		if seg.Kind != SegmentCodeBlock || strings.TrimSpace(seg.Code) == "" {
			continue
		}
		name := uniqueName(seg.Filename(), used)
		used[name] = true
		files = append(files, File{
			FileName: name,
			FileData: []byte(seg.Code),
			Language: seg.Language,
		})
	}
	return files
}

// uniqueName returns name, or name with the first free numeric suffix.
func uniqueName(name string, used map[string]bool) string {
	if !used[name] {
		return name
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", base, n, ext)
		if !used[candidate] {
			return candidate
		}
	}
}
