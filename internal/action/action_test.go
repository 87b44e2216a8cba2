package action

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/grounded-assistant/internal/nlu"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func set(kv ...string) nlu.EntitySet {
	var e nlu.EntitySet
	for i := 0; i+1 < len(kv); i += 2 {
		e.Set(nlu.Slot(kv[i]), kv[i+1])
	}
	return e
}

func TestBuild_Ticket(t *testing.T) {
	b := NewBuilder(nil)
	rec := b.Build("action_ticket", set(
		"employee_id", "EMP123",
		"description", "My laptop screen is flickering",
		"priority", "High",
	), fixedNow)

	_, err := uuid.Parse(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, CreateTicket, rec.Action)
	assert.Equal(t, "IT Service Desk", rec.Department)
	assert.Equal(t, "High", rec.Priority)
	assert.Equal(t, "EMP123", rec.RequestedBy)
	assert.Equal(t, "My laptop screen is flickering", rec.Issue)
	assert.Equal(t, "2025-03-14T09:30:00Z", rec.Timestamp)
	assert.Equal(t, Context{EmployeeID: "EMP123", PriorityLevel: "High"}, rec.Context)
	assert.Empty(t, rec.Topic)
	assert.Empty(t, rec.Role)
}

func TestBuild_Defaults(t *testing.T) {
	b := NewBuilder(nil)

	rec := b.Build("action_ticket", set("ticket_type", "Hardware Issue"), fixedNow)
	assert.Equal(t, "Medium", rec.Priority)
	assert.Equal(t, "Anonymous", rec.RequestedBy)
	assert.Equal(t, "Hardware Issue", rec.Issue)

	rec = b.Build("action_ticket", set("priority", "Low|Medium|High"), fixedNow)
	assert.Equal(t, "Medium", rec.Priority)
	assert.Equal(t, "General Issue", rec.Issue)
}

func TestBuild_Meeting(t *testing.T) {
	b := NewBuilder(nil)
	rec := b.Build("action_schedule", set("date", "tomorrow", "topic", "budget review", "department", "Finance"), fixedNow)

	assert.Equal(t, ScheduleMeeting, rec.Action)
	assert.Equal(t, "Finance", rec.Department)
	assert.Equal(t, "budget review", rec.Topic)
	assert.Equal(t, "tomorrow", rec.Date)
	assert.Equal(t, "TBD", rec.Participants)
	assert.Equal(t, "Virtual", rec.Location)
	assert.Empty(t, rec.Issue)
}

func TestBuild_Access(t *testing.T) {
	b := NewBuilder(nil)
	rec := b.Build("action_access", set("application_name", "SAP"), fixedNow)

	assert.Equal(t, RequestAccess, rec.Action)
	assert.Equal(t, "General Support", rec.Department)
	assert.Equal(t, "SAP", rec.ApplicationName)
	assert.Equal(t, "SAP", rec.Context.ApplicationName)
	assert.Equal(t, "Default User", rec.Role)
}

func TestBuild_UnknownIntent(t *testing.T) {
	rec := NewBuilder(nil).Build("ask_finance", nlu.EntitySet{}, fixedNow)
	assert.Equal(t, UnknownAction, rec.Action)
}

func TestBuild_UniqueIDs(t *testing.T) {
	b := NewBuilder(nil)
	a := b.Build("action_ticket", nlu.EntitySet{}, fixedNow)
	c := b.Build("action_ticket", nlu.EntitySet{}, fixedNow)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestParseRecord(t *testing.T) {
	rec := NewBuilder(nil).Build("action_schedule", set("date", "tomorrow"), fixedNow)
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	got, ok := ParseRecord(data)
	require.True(t, ok)
	assert.Equal(t, rec, got)

	for _, bad := range []string{``, `{`, `[1,2]`, `{"department":"IT"}`, `{"action": 5}`} {
		_, ok := ParseRecord([]byte(bad))
		assert.False(t, ok, bad)
	}
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Create Ticket", Title("create_ticket"))
	assert.Equal(t, "Schedule Meeting", Title("schedule_meeting"))
	assert.Equal(t, "General Action", Title(""))
}

func TestClarification(t *testing.T) {
	assert.Equal(t,
		"I need one detail to proceed:\n- Missing: employee_id, department\n\nQuestion: Please provide employee_id to continue.",
		Clarification([]string{"employee_id", "department"}))
	assert.Equal(t, GenericPrompt, Clarification(nil))
}
