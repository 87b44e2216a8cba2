package nlu

import (
	"encoding/json"
	"sort"
	"strings"
)

// #region slot

// Slot names a field in an EntitySet.
type Slot string

const (
	SlotEmployeeID   Slot = "employee_id"
	SlotDepartment   Slot = "department"
	SlotDate         Slot = "date"
	SlotApplication  Slot = "application_name"
	SlotDescription  Slot = "description"
	SlotPriority     Slot = "priority"
	SlotTopic        Slot = "topic"
	SlotParticipants Slot = "participants"
	SlotTicketType   Slot = "ticket_type"
	SlotMetric       Slot = "metric"
	SlotPolicyTitle  Slot = "policy_title"
	SlotLocation     Slot = "location"
)

// placeholders are template strings that extractors emit for "not found".
var placeholders = []string{"...", "TBD", "Low|Medium|High", "N/A"}

// IsPlaceholder reports whether v is empty, a known placeholder, or an
// unexpanded format template.
func IsPlaceholder(v string) bool {
	s := strings.TrimSpace(v)
	if s == "" {
		return true
	}
	for _, p := range placeholders {
		if s == p {
			return true
		}
	}
	return strings.Contains(s, "{{") || strings.Contains(s, "}}")
}

// #endregion

// #region entity-set

// EntitySet maps slots to resolved values. A slot is either unset or holds a
// concrete value; Set refuses placeholders so templates never leak through.
// The zero value is an empty set ready to use.
type EntitySet struct {
	values map[Slot]string
}

// NewEntitySet builds a set from a plain map, dropping placeholder values.
func NewEntitySet(values map[Slot]string) EntitySet {
	var e EntitySet
	for k, v := range values {
		e.Set(k, v)
	}
	return e
}

// Set stores a concrete value. It returns false and leaves the slot unchanged
// when v is a placeholder.
func (e *EntitySet) Set(slot Slot, v string) bool {
	if IsPlaceholder(v) {
		return false
	}
	if e.values == nil {
		e.values = make(map[Slot]string)
	}
	e.values[slot] = strings.TrimSpace(v)
	return true
}

// Unset clears a slot.
func (e *EntitySet) Unset(slot Slot) {
	delete(e.values, slot)
}

// Get returns the slot value and whether it is set.
func (e EntitySet) Get(slot Slot) (string, bool) {
	v, ok := e.values[slot]
	return v, ok
}

// Value returns the slot value or "" when unset.
func (e EntitySet) Value(slot Slot) string {
	return e.values[slot]
}

// Has reports whether the slot holds a concrete value.
func (e EntitySet) Has(slot Slot) bool {
	_, ok := e.values[slot]
	return ok
}

// Len returns the number of set slots.
func (e EntitySet) Len() int {
	return len(e.values)
}

// Slots returns the set slot names in sorted order.
func (e EntitySet) Slots() []Slot {
	out := make([]Slot, 0, len(e.values))
	for k := range e.values {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Values returns the concrete values in slot order.
func (e EntitySet) Values() []string {
	slots := e.Slots()
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = e.values[s]
	}
	return out
}

// Clone returns an independent copy.
func (e EntitySet) Clone() EntitySet {
	var c EntitySet
	for k, v := range e.values {
		c.Set(k, v)
	}
	return c
}

// Map returns a copy of the underlying values.
func (e EntitySet) Map() map[Slot]string {
	out := make(map[Slot]string, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}

// String renders "slot=value" pairs in slot order.
func (e EntitySet) String() string {
	parts := make([]string, 0, len(e.values))
	for _, s := range e.Slots() {
		parts = append(parts, string(s)+"="+e.values[s])
	}
	return strings.Join(parts, ", ")
}

// MarshalJSON encodes the set as a flat object.
func (e EntitySet) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Map())
}

// UnmarshalJSON decodes a flat object, dropping placeholder values.
func (e *EntitySet) UnmarshalJSON(data []byte) error {
	var raw map[Slot]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = NewEntitySet(raw)
	return nil
}

// #endregion

// #region signals

// Sentiment is the coarse polarity of an utterance.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// IntentSignal is the classifier output for one utterance.
type IntentSignal struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// SentimentSignal carries polarity, urgency and the urgency cues that fired.
type SentimentSignal struct {
	Sentiment Sentiment `json:"sentiment"`
	Urgent    bool      `json:"is_urgent"`
	Signals   []string  `json:"signals,omitempty"`
}

// Signals bundles everything the classifiers say about one utterance.
type Signals struct {
	Intent    IntentSignal    `json:"intent"`
	Sentiment SentimentSignal `json:"sentiment"`
	Entities  EntitySet       `json:"entities"`
}

// #endregion
