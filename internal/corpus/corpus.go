package corpus

import (
	"sort"
	"time"
)

// Utterance is a single turn in a conversation. Metadata carries the
// speaker role under "role" and is the attachment point for computed
// annotations (simulated replies, scores).
type Utterance struct {
	ID             string
	ConversationID string
	Speaker        string
	Text           string
	Timestamp      time.Time
	Meta           map[string]any
}

// Role returns the speaker role tag from metadata, or "" if unset.
func (u *Utterance) Role() string {
	if u.Meta == nil {
		return ""
	}
	if r, ok := u.Meta["role"].(string); ok {
		return r
	}
	return ""
}

// SetMeta attaches a metadata value, allocating the map on first use.
func (u *Utterance) SetMeta(key string, value any) {
	if u.Meta == nil {
		u.Meta = make(map[string]any)
	}
	u.Meta[key] = value
}

// Conversation is an ordered sequence of utterances sharing a conversation ID.
type Conversation struct {
	ID   string
	utts []*Utterance
}

func (c *Conversation) add(u *Utterance) {
	c.utts = append(c.utts, u)
}

// Chronological returns the conversation's utterances sorted by timestamp.
// The sort is stable, so utterances with equal timestamps keep insertion order.
func (c *Conversation) Chronological() []*Utterance {
	out := make([]*Utterance, len(c.utts))
	copy(out, c.utts)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Roles returns the distinct role tags in order of first appearance
// (chronological), so callers get a deterministic role enumeration.
func (c *Conversation) Roles() []string {
	seen := make(map[string]bool)
	var roles []string
	for _, u := range c.Chronological() {
		r := u.Role()
		if !seen[r] {
			seen[r] = true
			roles = append(roles, r)
		}
	}
	return roles
}

// Corpus holds conversations in insertion order plus an utterance index.
type Corpus struct {
	convos  []*Conversation
	byConvo map[string]*Conversation
	byUtt   map[string]*Utterance
}

func New() *Corpus {
	return &Corpus{
		byConvo: make(map[string]*Conversation),
		byUtt:   make(map[string]*Utterance),
	}
}

// AddUtterance appends an utterance to its conversation, creating the
// conversation on first sight. Duplicate utterance IDs are replaced in the
// index but both copies remain in the conversation.
func (c *Corpus) AddUtterance(u *Utterance) {
	convo, ok := c.byConvo[u.ConversationID]
	if !ok {
		convo = &Conversation{ID: u.ConversationID}
		c.byConvo[u.ConversationID] = convo
		c.convos = append(c.convos, convo)
	}
	convo.add(u)
	c.byUtt[u.ID] = u
}

// Conversations returns conversations in insertion order.
func (c *Corpus) Conversations() []*Conversation {
	return c.convos
}

// Utterance looks up an utterance by ID.
func (c *Corpus) Utterance(id string) (*Utterance, bool) {
	u, ok := c.byUtt[id]
	return u, ok
}

// Utterances visits every utterance in the corpus, conversation by
// conversation in chronological order.
func (c *Corpus) Utterances(visit func(*Utterance)) {
	for _, convo := range c.convos {
		for _, u := range convo.Chronological() {
			visit(u)
		}
	}
}

// ContextTuple groups an utterance with its surrounding conversational
// context. Context holds the prior utterances including the current one;
// FutureContext holds the subsequent utterances when requested, or nil.
type ContextTuple struct {
	Context        []*Utterance
	Current        *Utterance
	FutureContext  []*Utterance
	ConversationID string
}

// ContextSelector decides whether a context tuple participates in a pass.
type ContextSelector func(ContextTuple) bool

// SelectAll accepts every context tuple.
func SelectAll(ContextTuple) bool { return true }

// Contexts walks every conversation chronologically and yields one context
// tuple per utterance that passes the selector. With includeFuture, each
// tuple also carries the remaining utterances of its conversation (empty,
// not nil, for the final utterance).
func (c *Corpus) Contexts(selector ContextSelector, includeFuture bool) []ContextTuple {
	if selector == nil {
		selector = SelectAll
	}
	var tuples []ContextTuple
	for _, convo := range c.convos {
		utts := convo.Chronological()
		for i := range utts {
			tuple := ContextTuple{
				Context:        utts[:i+1],
				Current:        utts[i],
				ConversationID: convo.ID,
			}
			if includeFuture {
				tuple.FutureContext = utts[i+1:]
			}
			if len(tuple.Context) == 0 || !selector(tuple) {
				continue
			}
			tuples = append(tuples, tuple)
		}
	}
	return tuples
}
