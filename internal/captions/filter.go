// Package captions suppresses double transcriptions of one utterance.
// Two co-located devices hearing the same speech each produce a
// transcript; without filtering, a caption shows up twice, once from
// the local recognizer and once relayed from the peer.
package captions

import (
	"strings"
	"sync"
	"time"

	"github.com/linzo/meet/internal/domain"
)

// DefaultWindow is the age horizon of the recent-transcript buffer.
const DefaultWindow = 5 * time.Second

// Filter keeps a bounded window of recent transcripts and rejects a
// candidate whose normalized text is a substring or superstring of an
// entry from the other source within the window. One Filter serves one
// room; all its operations are serialized behind its own lock.
//
// Matching is room-scoped rather than per sender pair. In rooms larger
// than two this can also eat a genuine coincidental repeat of a phrase
// by an unrelated participant.
type Filter struct {
	mu      sync.Mutex
	window  time.Duration
	entries []domain.Transcript
	now     func() time.Time
}

func NewFilter(window time.Duration) *Filter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Filter{window: window, now: time.Now}
}

// Observe runs the candidate through the filter. Accepted events enter
// the window and should be displayed (and, for local events, broadcast);
// rejected ones are duplicates of the other source and must be dropped.
func (f *Filter) Observe(text string, source domain.TranscriptSource) bool {
	norm := normalize(text)
	if norm == "" {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	f.pruneLocked(now)

	for _, e := range f.entries {
		if e.Source == source {
			// Only the other source category counts: the point is echo
			// between two listeners, not a speaker repeating themselves.
			continue
		}
		if sameUtterance(norm, e.Text) {
			return false
		}
	}

	f.entries = append(f.entries, domain.Transcript{Text: norm, Source: source, At: now})
	return true
}

// Len reports the current window size, after pruning.
func (f *Filter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruneLocked(f.now())
	return len(f.entries)
}

// pruneLocked drops entries older than the horizon. Pruning on every
// observation keeps the buffer monotonically bounded.
func (f *Filter) pruneLocked(now time.Time) {
	cutoff := now.Add(-f.window)
	keep := f.entries[:0]
	for _, e := range f.entries {
		if e.At.After(cutoff) {
			keep = append(keep, e)
		}
	}
	f.entries = keep
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// overlapRatio is the share of the shorter transcript's words that must
// appear as one contiguous run in the other for the two to count as the
// same utterance.
const overlapRatio = 0.8

// sameUtterance approximates "two transcriptions of one utterance"
// without fuzzy string-distance computation. Substring containment in
// either direction covers the common case of a partial or extended
// transcription; the shared-word-run check additionally tolerates a
// word clipped at one edge and appended at the other, e.g.
// "the meeting starts at five" vs "meeting starts at five pm".
func sameUtterance(a, b string) bool {
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	aw := strings.Fields(a)
	bw := strings.Fields(b)
	short := len(aw)
	if len(bw) < short {
		short = len(bw)
	}
	if short == 0 {
		return false
	}
	return float64(longestCommonRun(aw, bw)) >= overlapRatio*float64(short)
}

// longestCommonRun is the length of the longest contiguous word
// sequence the two transcripts share.
func longestCommonRun(a, b []string) int {
	best := 0
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best = cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return best
}
