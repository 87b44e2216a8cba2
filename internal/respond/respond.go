// Package respond is the boundary model handed to the UI: one of a grounded
// answer, an action record, a clarifying question or an escalation notice.
package respond

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danielpatrickdp/grounded-assistant/internal/action"
)

// #region kind
// Kind is the response category.
type Kind string

const (
	KindAnswer   Kind = "answer"
	KindAction   Kind = "action"
	KindClarify  Kind = "clarify"
	KindEscalate Kind = "escalate"
)

// #endregion kind

// #region response
// Response is the outcome of one turn.
type Response struct {
	TurnID string         `json:"turn_id,omitempty"`
	Kind   Kind           `json:"kind"`
	Text   string         `json:"text"`
	Action *action.Record `json:"action,omitempty"`

	Missing []string `json:"missing,omitempty"`
	Reason  string   `json:"reason,omitempty"`
	Pages   []int    `json:"pages,omitempty"`

	// InternalError marks a broken dependency (e.g. the index is missing),
	// as opposed to a query that simply matched nothing.
	InternalError bool `json:"internal_error,omitempty"`

	// Degraded is set when the heuristic classifier stood in for the model.
	Degraded bool `json:"degraded,omitempty"`
}

// #endregion response

// #region render
// Render formats the response as markdown.
func (r Response) Render() string {
	switch r.Kind {
	case KindAction:
		if r.Action == nil {
			return r.Text
		}
		return renderAction(*r.Action)
	case KindEscalate:
		if r.Text != "" {
			return r.Text
		}
		return fmt.Sprintf("I am escalating this request to a human agent. Reason: %s", r.Reason)
	default:
		return r.Text
	}
}

func renderAction(rec action.Record) string {
	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error formatting action JSON: %v", err)
	}
	details := fmt.Sprintf("<details>\n<summary>View Full Details (JSON)</summary>\n\n```json\n%s\n```\n</details>", raw)

	var b strings.Builder
	switch rec.Action {
	case action.ScheduleMeeting:
		participants := rec.Participants
		if participants == "" || participants == "TBD" {
			participants = "To be determined"
		}
		fmt.Fprintf(&b, "### Meeting Scheduled Successfully\n\n")
		fmt.Fprintf(&b, "**Date:** %s\n**Topic:** %s\n**Location:** %s\n**Participants:** %s\n\n",
			rec.Date, rec.Topic, rec.Location, participants)
		b.WriteString("---\n\nYour meeting has been added to the system. Type **'yes'** to confirm or provide additional details.\n\n")
		b.WriteString(details)
	case action.CreateTicket:
		fmt.Fprintf(&b, "### Ticket Created Successfully\n\n")
		fmt.Fprintf(&b, "**Issue:** %s\n**Priority:** %s\n**Department:** %s\n\n", rec.Issue, rec.Priority, rec.Department)
		b.WriteString("---\n\nYour ticket has been logged. Type **'yes'** to confirm or provide more details.\n\n")
		b.WriteString(details)
	case action.RequestAccess:
		app := rec.ApplicationName
		if app == "" {
			app = rec.Context.ApplicationName
		}
		if app == "" {
			app = "the requested application"
		}
		fmt.Fprintf(&b, "### Access Request Prepared\n\n")
		fmt.Fprintf(&b, "**Application:** %s\n**Requested Role:** %s\n\n", app, rec.Role)
		b.WriteString("---\n\nI have prepared an access request for you. Type **'yes'** to submit it for approval.\n\n")
		b.WriteString(details)
	default:
		title := action.Title(rec.Action)
		fmt.Fprintf(&b, "### Action Prepared: %s\n", title)
		fmt.Fprintf(&b, "**Summary**: I am ready to trigger a %s with the details provided below.\n\n", strings.ToLower(title))
		fmt.Fprintf(&b, "```json\n%s\n```\n\n", raw)
		b.WriteString("Type **'yes'** to confirm or provide additional information.")
	}
	return b.String()
}

// #endregion render
