package action

// #region record
// Record is a structured action ready for human confirmation. Meeting fields
// are set only for meetings; Issue only for the other actions.
type Record struct {
	ID          string `json:"id"`
	Action      string `json:"action"`
	Department  string `json:"department"`
	Priority    string `json:"priority"`
	Timestamp   string `json:"timestamp"`
	RequestedBy string `json:"requested_by"`

	Topic        string `json:"topic,omitempty"`
	Participants string `json:"participants,omitempty"`
	Date         string `json:"date,omitempty"`
	Location     string `json:"location,omitempty"`

	Issue           string `json:"issue,omitempty"`
	ApplicationName string `json:"application_name,omitempty"`
	Role            string `json:"role,omitempty"`

	Context Context `json:"context"`
}

// Context is the derived block copied from the resolved entities.
type Context struct {
	EmployeeID      string `json:"employee_id,omitempty"`
	Department      string `json:"department,omitempty"`
	ApplicationName string `json:"application_name,omitempty"`
	PriorityLevel   string `json:"priority_level"`
}

// #endregion record

// Action names the builder knows how to fill.
const (
	CreateTicket    = "create_ticket"
	RequestAccess   = "request_access"
	ScheduleMeeting = "schedule_meeting"
	UnknownAction   = "unknown_action"
)

// #region defaults
const (
	defaultPriority     = "Medium"
	defaultTicketDept   = "IT Service Desk"
	defaultDept         = "General Support"
	defaultRequester    = "Anonymous"
	defaultMeetingTopic = "Meeting Request"
	defaultParticipants = "TBD"
	defaultDate         = "TBD"
	defaultLocation     = "Virtual"
	defaultIssue        = "General Issue"
	defaultRole         = "Default User"
)

// #endregion defaults
