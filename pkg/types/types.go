// Package types defines the values exchanged between codevox and the
// collaborators that feed it: speech-to-text output and its per-word detail.
//
// These types are intentionally minimal. Each package defines its own domain
// types; only data crossing the process boundary lives here.
package types

import "time"

// Transcript represents a speech-to-text result handed to codevox for
// formatting. Both partial (interim) and final transcripts use this type.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal indicates whether this is a final (authoritative) or partial
	// (interim) transcript.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). May be zero if the
	// recogniser does not report confidence.
	Confidence float64

	// Words contains per-word detail when available. May be nil.
	Words []WordDetail

	// Timestamp marks when the utterance started, relative to session start.
	Timestamp time.Duration

	// Duration is the length of the utterance.
	Duration time.Duration
}

// WordDetail holds per-word metadata from recognisers that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// LowConfidenceWords returns the words whose confidence is below threshold.
// Words without detail are never reported.
func (t Transcript) LowConfidenceWords(threshold float64) []string {
	var out []string
	for _, w := range t.Words {
		if w.Confidence < threshold {
			out = append(out, w.Word)
		}
	}
	return out
}
