// Package redirection extracts aligned previous/future conversational
// contexts from two-party conversations. The maps it produces feed the
// likelihood scorer, which measures how strongly each utterance redirects
// the conversation that follows it.
package redirection

import (
	"fmt"

	"github.com/MikeSquared-Agency/helm/internal/corpus"
)

// ContextMap maps an utterance ID to its prefixed context fragments.
// Previous/reference contexts carry two fragments; future contexts carry one.
type ContextMap map[string][]string

// speakerPrefixLabels are assigned to roles in first-appearance order.
var speakerPrefixLabels = []string{"Speaker A: ", "Speaker B: "}

// SpeakerPrefixes assigns a short textual prefix to each role so that turn
// ownership survives concatenation into a single string. Prefixes are unique
// per role within a conversation.
func SpeakerPrefixes(roles []string) map[string]string {
	prefixes := make(map[string]string, len(roles))
	for i, role := range roles {
		if i < len(speakerPrefixLabels) {
			prefixes[role] = speakerPrefixLabels[i]
		} else {
			prefixes[role] = fmt.Sprintf("Speaker %d: ", i+1)
		}
	}
	return prefixes
}

// turn is a completed utterance snapshot used by the scan state.
type turn struct {
	text string
	role string
}

// prevScanState tracks the rolling view of a chronological scan: the latest
// utterance per role, the frozen previous turn per role (snapshotted when the
// speaker alternates), and who spoke last.
type prevScanState struct {
	latest  [2]*turn
	frozen  [2]*turn
	prevSpk string
}

// twoRoles validates the exactly-two-roles precondition and returns the
// conversation's roles in first-appearance order. Role tags are compared for
// exact equality.
func twoRoles(convo *corpus.Conversation) ([]string, error) {
	roles := convo.Roles()
	if len(roles) != 2 {
		return nil, fmt.Errorf("conversation %s: expected exactly 2 roles, got %d %v", convo.ID, len(roles), roles)
	}
	return roles, nil
}

// PreviousContexts scans a two-party conversation chronologically and builds
// two aligned maps keyed by utterance ID:
//
//   - actual: [other speaker's previous turn, the utterance itself]
//   - reference: [other speaker's previous turn, this speaker's own previous turn]
//
// Both slots look back through completed turns, so entries are emitted only
// once each role has finished at least one turn. All fragments carry their
// speaker prefix.
func PreviousContexts(convo *corpus.Conversation) (actual, reference ContextMap, err error) {
	roles, err := twoRoles(convo)
	if err != nil {
		return nil, nil, err
	}
	prefixes := SpeakerPrefixes(roles)

	actual = make(ContextMap)
	reference = make(ContextMap)

	var st prevScanState
	for _, utt := range convo.Chronological() {
		curRole := utt.Role()
		curIdx := roleIndex(roles, curRole)

		// The turn just completed belongs to whoever is not speaking now.
		// Freeze their latest utterance as the previous turn.
		if st.prevSpk != "" && curRole != st.prevSpk {
			st.frozen[1-curIdx] = st.latest[1-curIdx]
		}

		if st.frozen[0] != nil && st.frozen[1] != nil {
			prev := st.frozen[1-curIdx]
			prevPrev := st.frozen[curIdx]
			prevText := prefixes[prev.role] + prev.text
			actual[utt.ID] = []string{prevText, prefixes[curRole] + utt.Text}
			reference[utt.ID] = []string{prevText, prefixes[prevPrev.role] + prevPrev.text}
		}

		st.latest[curIdx] = &turn{text: utt.Text, role: curRole}
		st.prevSpk = curRole
	}

	return actual, reference, nil
}

// FutureContexts scans a two-party conversation in reverse chronological
// order and maps each utterance ID to the prefixed text of the nearest later
// utterance by the other role. Utterances with no later opposite-role turn
// get no entry; at most one fragment is emitted per utterance.
func FutureContexts(convo *corpus.Conversation) (ContextMap, error) {
	roles, err := twoRoles(convo)
	if err != nil {
		return nil, err
	}
	prefixes := SpeakerPrefixes(roles)

	future := make(ContextMap)

	var nearest [2]*turn // nearest later utterance per role
	utts := convo.Chronological()
	for i := len(utts) - 1; i >= 0; i-- {
		utt := utts[i]
		curRole := utt.Role()
		curIdx := roleIndex(roles, curRole)

		nearest[curIdx] = &turn{text: utt.Text, role: curRole}
		if opp := nearest[1-curIdx]; opp != nil {
			future[utt.ID] = []string{prefixes[opp.role] + opp.text}
		}
	}

	return future, nil
}

func roleIndex(roles []string, role string) int {
	if role == roles[1] {
		return 1
	}
	return 0
}
