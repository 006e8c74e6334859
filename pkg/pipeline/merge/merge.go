// Package merge deduplicates the repeated words that appear at segment
// seams because consecutive segments share a 2 s audio overlap. The
// word-tokenising/case-folding idiom (strings.Fields + strings.ToLower) is
// the same one the teacher's phonetic entity matcher
// (internal/transcript/phonetic) uses, generalised here from fuzzy entity
// lookup to exact word-boundary matching since overlap dedup only needs
// exact agreement at the seam, not fuzzy correction.
package merge

import (
	"context"
	"strings"

	"github.com/MrWong99/whisvoice/internal/observe"
	"github.com/MrWong99/whisvoice/pkg/backend"
)

// maxOverlapWords bounds how many trailing/leading words are compared when
// searching for the seam: two seconds of speech rarely exceeds 15 words at
// any conversational pace, and bounding the search caps the seam comparison
// at 15 candidate lengths per record. The merged string is still split into
// words on every record.
const maxOverlapWords = 15

// Records merges a slice of transcription records, already sorted by
// index, into a single deduplicated transcript string.
func Records(records []backend.TranscriptionRecord) string {
	var merged string
	for i, r := range records {
		if i == 0 {
			merged = r.Text
			continue
		}
		merged = appendRecord(merged, r)
	}
	return merged
}

// appendRecord concatenates one record's text onto the already-merged
// transcript, dropping the duplicated words at the overlap seam when the
// record declares a leading overlap.
func appendRecord(merged string, r backend.TranscriptionRecord) string {
	next := r.Text
	if r.HasLeadingOverlap {
		next = dropOverlap(merged, next)
	}
	if next == "" {
		return merged
	}
	if merged == "" {
		return next
	}
	if strings.HasSuffix(merged, " ") || strings.HasPrefix(next, " ") {
		return merged + next
	}
	return merged + " " + next
}

// dropOverlap finds the longest run of words (1..=min(maxOverlapWords,
// len(existingWords), len(newWords))) that is simultaneously a suffix of
// merged and a prefix of next, comparing case-insensitively word by word,
// and returns next with that many leading words removed.
func dropOverlap(merged, next string) string {
	existingWords := strings.Fields(merged)
	newWords := strings.Fields(next)
	if len(existingWords) == 0 || len(newWords) == 0 {
		return next
	}

	limit := maxOverlapWords
	if len(existingWords) < limit {
		limit = len(existingWords)
	}
	if len(newWords) < limit {
		limit = len(newWords)
	}

	best := 0
	for n := 1; n <= limit; n++ {
		suffix := existingWords[len(existingWords)-n:]
		prefix := newWords[:n]
		if wordsEqualFold(suffix, prefix) {
			best = n
		}
	}

	if best > 0 {
		observe.DefaultMetrics().MergeTrimmedWords.Add(context.Background(), int64(best))
	}

	return joinFromWord(next, newWords, best)
}

// wordsEqualFold reports whether a and b contain the same words in order,
// ignoring case.
func wordsEqualFold(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

// joinFromWord returns the substring of next starting at the skipCount-th
// word, reconstructed by re-joining the remaining tokenised words — the
// original inter-word whitespace is not preserved, which is acceptable
// because callers only concatenate this result with a single normalising
// space.
func joinFromWord(next string, words []string, skipCount int) string {
	if skipCount == 0 {
		return next
	}
	if skipCount >= len(words) {
		return ""
	}
	return strings.Join(words[skipCount:], " ")
}
