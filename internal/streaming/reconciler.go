package streaming

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/lexiqai/stream-transcriber/internal/stt"
)

const (
	// DefaultCommitEpsilon keeps a segment ending at the last commit point from committing twice
	DefaultCommitEpsilon = 0.05
	// DefaultOverlapWords bounds the transcript tail searched for duplicated words
	DefaultOverlapWords = 60
)

// Transcript is the append-only committed text of one session
type Transcript struct {
	text              string
	words             []string
	lastCommittedTime float64
}

// Text returns the committed transcript
func (t *Transcript) Text() string {
	return t.text
}

// LastCommittedTime returns the absolute stream time, in seconds,
// up to which audio has been finalized
func (t *Transcript) LastCommittedTime() float64 {
	return t.lastCommittedTime
}

// WordCount returns the number of committed words
func (t *Transcript) WordCount() int {
	return len(t.words)
}

// PromptTail returns at most maxChars trailing characters of the transcript,
// starting on a word boundary.
func (t *Transcript) PromptTail(maxChars int) string {
	if maxChars <= 0 || t.text == "" {
		return ""
	}
	runes := []rune(t.text)
	if len(runes) <= maxChars {
		return t.text
	}

	start := len(runes) - maxChars
	if !unicode.IsSpace(runes[start-1]) {
		// Cut landed inside a word
		for start < len(runes) && !unicode.IsSpace(runes[start]) {
			start++
		}
	}
	return strings.TrimSpace(string(runes[start:]))
}

func (t *Transcript) append(words []string) string {
	addition := strings.Join(words, " ")
	if t.text == "" {
		t.text = addition
	} else {
		t.text += " " + addition
	}
	t.words = append(t.words, words...)
	return addition
}

// Round is one decode result ready for reconciliation
type Round struct {
	Segments []stt.Segment
	// WindowStart is the absolute stream time of the window's first sample
	WindowStart float64
	// Now is the absolute stream time of the window's last sample
	Now       float64
	CommitLag float64
	Force     bool
}

// Delta is the text finalized by one round
type Delta struct {
	// Text is empty when nothing new was committed
	Text string
	// CommittedUntil is the transcript's last committed time after the round
	CommittedUntil float64
	// Segments is the number of segments that passed the commit cutoff
	Segments int
	Trigger  Trigger
}

// Empty reports whether the round produced no new text
func (d Delta) Empty() bool {
	return d.Text == ""
}

// Words returns the number of words in the delta
func (d Delta) Words() int {
	return len(strings.Fields(d.Text))
}

// Reconciler turns overlapping, revisable decode results into
// append-only transcript deltas
type Reconciler struct {
	Epsilon      float64
	OverlapWords int
}

// NewReconciler returns a reconciler with the default constants
func NewReconciler() *Reconciler {
	return &Reconciler{
		Epsilon:      DefaultCommitEpsilon,
		OverlapWords: DefaultOverlapWords,
	}
}

type committable struct {
	text  string
	start float64
	end   float64
}

// Reconcile commits the segments of r that are old enough and not yet
// covered, drops any leading words already present at the end of the
// transcript, and appends the rest to t.
func (rc *Reconciler) Reconcile(t *Transcript, r Round) Delta {
	cutoff := r.Now - r.CommitLag
	if r.Force {
		cutoff = r.Now
	}

	var ready []committable
	maxEnd := math.Inf(-1)
	for _, seg := range r.Segments {
		if !finite(seg.Start) || !finite(seg.End) {
			continue
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		absEnd := r.WindowStart + seg.End
		if absEnd > cutoff || absEnd <= t.lastCommittedTime+rc.Epsilon {
			continue
		}
		ready = append(ready, committable{text: text, start: r.WindowStart + seg.Start, end: absEnd})
		if absEnd > maxEnd {
			maxEnd = absEnd
		}
	}

	delta := Delta{CommittedUntil: t.lastCommittedTime, Segments: len(ready)}
	if len(ready) == 0 {
		return delta
	}

	sort.SliceStable(ready, func(i, j int) bool { return ready[i].start < ready[j].start })

	var candidate []string
	for _, c := range ready {
		candidate = append(candidate, strings.Fields(c.text)...)
	}

	k := OverlapLength(t.words, candidate, rc.OverlapWords)
	if remaining := candidate[k:]; len(remaining) > 0 {
		delta.Text = t.append(remaining)
	}

	if maxEnd > t.lastCommittedTime {
		t.lastCommittedTime = maxEnd
	}
	delta.CommittedUntil = t.lastCommittedTime
	return delta
}

// OverlapLength returns the largest k such that the last k words of
// existing equal the first k words of candidate, considering at most
// maxWords trailing words of existing. Comparison is literal.
func OverlapLength(existing, candidate []string, maxWords int) int {
	limit := len(existing)
	if maxWords >= 0 && limit > maxWords {
		limit = maxWords
	}
	if limit > len(candidate) {
		limit = len(candidate)
	}

	tail := existing[len(existing)-limit:]
	for k := limit; k > 0; k-- {
		if wordsEqual(tail[len(tail)-k:], candidate[:k]) {
			return k
		}
	}
	return 0
}

func wordsEqual(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
