// Package chunker splits a transcript into overlapping positional windows.
//
// Split is pure and deterministic: the same transcript, recording id, and
// options always produce the same chunk sequence, with no I/O.
package chunker

import "fmt"

// Options configures window size and overlap, both measured in characters
// (runes are not special-cased — transcripts are treated as byte strings,
// matching the teacher's transcript-handling convention elsewhere).
type Options struct {
	// WindowSize is the target length of each chunk. Defaults to 1000.
	WindowSize int

	// Overlap is how many trailing characters of one window are repeated at
	// the start of the next. Defaults to 100. Must be smaller than WindowSize.
	Overlap int
}

// DefaultOptions returns the documented chunker defaults.
func DefaultOptions() Options {
	return Options{WindowSize: 1000, Overlap: 100}
}

// Chunk is an immutable substring of a transcript, identified by a stable id
// derived from the parent recording id and its index.
type Chunk struct {
	ID          string
	RecordingID string
	Text        string
	Start       int
	End         int
	ChunkIndex  int
	ChunkTotal  int
	Language    string
}

// Split partitions transcript into overlapping windows. Windows never cross
// recording boundaries (there is exactly one recording per call) and the
// last window may be shorter than WindowSize. An empty transcript yields no
// chunks.
func Split(transcript, recordingID, language string, opts Options) []Chunk {
	if opts.WindowSize <= 0 {
		opts = DefaultOptions()
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.WindowSize {
		opts.Overlap = DefaultOptions().Overlap
		if opts.Overlap >= opts.WindowSize {
			opts.Overlap = opts.WindowSize / 10
		}
	}

	if len(transcript) == 0 {
		return nil
	}

	var windows []struct{ start, end int }
	start := 0
	for start < len(transcript) {
		end := start + opts.WindowSize
		if end > len(transcript) {
			end = len(transcript)
		}
		windows = append(windows, struct{ start, end int }{start, end})
		if end == len(transcript) {
			break
		}
		start = end - opts.Overlap
	}

	chunks := make([]Chunk, len(windows))
	for i, w := range windows {
		chunks[i] = Chunk{
			ID:          fmt.Sprintf("%s:%d", recordingID, i),
			RecordingID: recordingID,
			Text:        transcript[w.start:w.end],
			Start:       w.start,
			End:         w.end,
			ChunkIndex:  i,
			ChunkTotal:  len(windows),
			Language:    language,
		}
	}
	return chunks
}
