// Package watch implements the per-source turn watchers: a tailing file
// follower, the session selector, and one turn state machine per agent CLI
// (Claude, Codex, Gemini), unified only at the dispatch boundary.
package watch

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/lllll081926i/Aitify/internal/util"
)

// SeedBytes is how much of a pre-existing file's tail is replayed once at
// attach time to prime turn state.
const SeedBytes = 256 * 1024

// LineFunc receives each complete line of a followed file. seed is true
// during the one-time attach replay and false for live content.
type LineFunc func(line string, seed bool)

// Follower tails one append-only file by byte offset. Reads are O(delta):
// each poll reads only the bytes appended since the previous poll. A shrink
// in file size is treated as truncation/rotation and resets the offset.
type Follower struct {
	path      string
	offset    int64
	partial   string
	seedBytes int64
}

// NewFollower creates a follower for path. It reads nothing until Attach.
func NewFollower(path string) *Follower {
	return &Follower{path: path, seedBytes: SeedBytes}
}

// Path returns the followed file path.
func (f *Follower) Path() string {
	return f.path
}

// Attach captures the current file size as the live offset and replays the
// tail of the existing content (up to SeedBytes) through fn with seed=true.
// When the seed window starts mid-file the first line is dropped, since it
// is almost certainly a fragment.
func (f *Follower) Attach(fn LineFunc) error {
	info, err := os.Stat(f.path)
	if err != nil {
		return err
	}

	size := info.Size()
	f.offset = size
	f.partial = ""

	start := int64(0)
	if size > f.seedBytes {
		start = size - f.seedBytes
	}

	text, err := readSlice(f.path, start, size-start)
	if err != nil {
		// Seed is best-effort; live polling still works from the offset.
		return nil
	}

	lines := strings.Split(text, "\n")
	if start > 0 && len(lines) > 0 {
		lines = lines[1:]
	}
	for _, line := range lines {
		if line == "" {
			continue
		}
		fn(line, true)
	}
	return nil
}

// Poll reads newly appended content and delivers complete lines through fn
// with seed=false. Stat or read failures mean "no update this poll".
func (f *Follower) Poll(fn LineFunc) {
	info, err := os.Stat(f.path)
	if err != nil {
		return
	}

	size := info.Size()
	if size < f.offset {
		// Truncated or rotated in place: start over from the top.
		f.offset = 0
		f.partial = ""
	}
	if size == f.offset {
		return
	}

	chunk, err := readSlice(f.path, f.offset, size-f.offset)
	if err != nil {
		return
	}
	f.offset = size

	text := f.partial + chunk
	lines := strings.Split(text, "\n")
	f.partial = lines[len(lines)-1]
	for _, line := range lines[:len(lines)-1] {
		if line == "" {
			continue
		}
		fn(line, false)
	}
}

// readSlice reads length bytes starting at start, using pooled buffers for
// the copy loop.
func readSlice(path string, start, length int64) (string, error) {
	if length <= 0 {
		return "", nil
	}

	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := file.Seek(start, io.SeekStart); err != nil {
		return "", err
	}

	buf := util.GetBuffer()
	defer util.PutBuffer(buf)

	var out bytes.Buffer
	out.Grow(int(length))
	remaining := length
	for remaining > 0 {
		want := int64(len(*buf))
		if want > remaining {
			want = remaining
		}
		n, readErr := file.Read((*buf)[:want])
		if n > 0 {
			out.Write((*buf)[:n])
			remaining -= int64(n)
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return "", readErr
		}
	}
	return out.String(), nil
}
