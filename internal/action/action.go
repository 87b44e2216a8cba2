// Package action builds structured action records and the clarifying
// questions asked when a record cannot be built yet.
package action

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/grounded-assistant/internal/nlu"
	"github.com/danielpatrickdp/grounded-assistant/internal/vocab"
)

// GenericPrompt is asked when clarification is needed but no detail is named.
const GenericPrompt = "I'm here to help! Could you please tell me more about what you need?"

// #region builder
// Builder maps action intents to records using the vocabulary's catalogue.
type Builder struct {
	vocab *vocab.Vocabulary
}

// NewBuilder returns a builder. A nil vocabulary uses the embedded default.
func NewBuilder(v *vocab.Vocabulary) *Builder {
	if v == nil {
		v = vocab.Default()
	}
	return &Builder{vocab: v}
}

// Build fills a record for intent from entities. Unset optional fields take
// their documented defaults; entities is not modified.
func (b *Builder) Build(intent string, entities nlu.EntitySet, now time.Time) Record {
	name := UnknownAction
	if spec, ok := b.vocab.Intent(intent); ok && spec.Action != "" {
		name = spec.Action
	}

	priority := valueOr(entities, nlu.SlotPriority, defaultPriority)
	dept := entities.Value(nlu.SlotDepartment)
	if dept == "" {
		dept = defaultDept
		if name == CreateTicket {
			dept = defaultTicketDept
		}
	}

	rec := Record{
		ID:          uuid.NewString(),
		Action:      name,
		Department:  dept,
		Priority:    priority,
		Timestamp:   now.Format(time.RFC3339),
		RequestedBy: valueOr(entities, nlu.SlotEmployeeID, defaultRequester),
		Context: Context{
			EmployeeID:      entities.Value(nlu.SlotEmployeeID),
			Department:      entities.Value(nlu.SlotDepartment),
			ApplicationName: entities.Value(nlu.SlotApplication),
			PriorityLevel:   priority,
		},
	}

	switch name {
	case ScheduleMeeting:
		rec.Topic = valueOr(entities, nlu.SlotTopic, defaultMeetingTopic)
		rec.Participants = valueOr(entities, nlu.SlotParticipants, defaultParticipants)
		rec.Date = valueOr(entities, nlu.SlotDate, defaultDate)
		rec.Location = valueOr(entities, nlu.SlotLocation, defaultLocation)
	default:
		rec.Issue = entities.Value(nlu.SlotDescription)
		if rec.Issue == "" {
			rec.Issue = valueOr(entities, nlu.SlotTicketType, defaultIssue)
		}
		if name == RequestAccess {
			rec.ApplicationName = entities.Value(nlu.SlotApplication)
			rec.Role = defaultRole
		}
	}
	return rec
}

func valueOr(e nlu.EntitySet, slot nlu.Slot, def string) string {
	if v, ok := e.Get(slot); ok {
		return v
	}
	return def
}

// #endregion builder

// #region payloads
// ParseRecord decodes a JSON action payload. Malformed payloads and payloads
// without an action name return ok=false; callers skip them.
func ParseRecord(data []byte) (Record, bool) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false
	}
	if strings.TrimSpace(rec.Action) == "" {
		return Record{}, false
	}
	return rec, true
}

// Title returns the human name of an action, e.g. "Create Ticket".
func Title(name string) string {
	if name == "" {
		return "General Action"
	}
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// #endregion payloads

// #region clarification
// Clarification asks for the first missing detail while listing all of them.
// With nothing missing it returns GenericPrompt.
func Clarification(missing []string) string {
	if len(missing) == 0 {
		return GenericPrompt
	}
	return fmt.Sprintf("I need one detail to proceed:\n- Missing: %s\n\nQuestion: Please provide %s to continue.",
		strings.Join(missing, ", "), missing[0])
}

// #endregion clarification
