package scheduler

import (
	"time"

	"github.com/MikeSquared-Agency/helm/internal/corpus"
)

// dedupWindow is the tolerance for matching utterance timestamps across
// corpus exports.
const dedupWindow = 1 * time.Second

// overlapThreshold is the fraction of timestamps that must match to consider
// two exports duplicates.
const overlapThreshold = 0.8

// fileFingerprint holds timing + content info for export deduplication.
type fileFingerprint struct {
	Path       string
	Timestamps []time.Time
	Previews   []string // first 3 utterance texts (trimmed)
}

// buildFingerprint creates a fingerprint from a parsed corpus.
func buildFingerprint(path string, c *corpus.Corpus) fileFingerprint {
	fp := fileFingerprint{Path: path}

	count := 0
	c.Utterances(func(u *corpus.Utterance) {
		if !u.Timestamp.IsZero() {
			fp.Timestamps = append(fp.Timestamps, u.Timestamp)
		}
		if count < 3 {
			text := u.Text
			if len(text) > 100 {
				text = text[:100]
			}
			fp.Previews = append(fp.Previews, text)
		}
		count++
	})

	return fp
}

// findDuplicates returns the paths of fingerprints that overlap an earlier
// fingerprint in the slice (earlier exports win).
func findDuplicates(fps []fileFingerprint) map[string]bool {
	duplicates := make(map[string]bool)

	for i := 1; i < len(fps); i++ {
		if len(fps[i].Timestamps) == 0 {
			continue
		}
		for j := 0; j < i; j++ {
			if duplicates[fps[j].Path] {
				continue
			}
			if isOverlapping(fps[j], fps[i]) {
				duplicates[fps[i].Path] = true
				break
			}
		}
	}

	return duplicates
}

// isOverlapping checks if >80% of b's timestamps appear in a within the
// dedupWindow.
func isOverlapping(a, b fileFingerprint) bool {
	if len(b.Timestamps) == 0 {
		return false
	}

	matches := 0
	for _, bt := range b.Timestamps {
		for _, at := range a.Timestamps {
			diff := bt.Sub(at)
			if diff < 0 {
				diff = -diff
			}
			if diff <= dedupWindow {
				matches++
				break
			}
		}
	}

	return float64(matches)/float64(len(b.Timestamps)) >= overlapThreshold
}
