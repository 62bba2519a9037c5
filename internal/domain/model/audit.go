package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	EventUpdated       = "updated"
	EventFmcVerified   = "fmc_verified"
	EventSpeedVerified = "speed_verified"
)

// UpdatedObject names the thing an audit event touched, e.g. "solve #42".
type UpdatedObject struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

func (o UpdatedObject) String() string {
	if o.Name != "" {
		return fmt.Sprintf("%s #%d (%q)", o.Type, o.ID, o.Name)
	}
	return fmt.Sprintf("%s #%d", o.Type, o.ID)
}

// AuditLogEvent is stored as a JSON blob in the SolveLog/GeneralLog tables.
// Updated events carry a field diff (old value, new value); verification
// events carry the old and new verdict.
type AuditLogEvent struct {
	Type    string               `json:"type"`
	Object  *UpdatedObject       `json:"object,omitempty"`
	Fields  map[string][2]string `json:"fields,omitempty"`
	Old     *bool                `json:"old,omitempty"`
	New     *bool                `json:"new,omitempty"`
	Comment string               `json:"comment,omitempty"`
}

// Describe renders the event for the moderation UI.
func (e AuditLogEvent) Describe() string {
	var b strings.Builder
	switch e.Type {
	case EventUpdated:
		if e.Object != nil {
			fmt.Fprintf(&b, "Updated %s", e.Object)
		} else {
			b.WriteString("Updated")
		}
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			diff := e.Fields[k]
			fmt.Fprintf(&b, "\nChanged %s from %s to %s", k, diff[0], diff[1])
		}
	case EventFmcVerified:
		fmt.Fprintf(&b, "Changed fmc_verified from %s to %s", verdictString(e.Old), verdictString(e.New))
	case EventSpeedVerified:
		fmt.Fprintf(&b, "Changed speed_verified from %s to %s", verdictString(e.Old), verdictString(e.New))
	default:
		fmt.Fprintf(&b, "unknown event %q", e.Type)
	}
	if e.Comment != "" {
		fmt.Fprintf(&b, "\nComment: %s", e.Comment)
	}
	return b.String()
}

func verdictString(v *bool) string {
	switch {
	case v == nil:
		return "pending"
	case *v:
		return "accepted"
	default:
		return "rejected"
	}
}

type AuditLogEntry struct {
	Timestamp  time.Time     `json:"timestamp"`
	EditorID   string        `json:"editor_id"`
	EditorName *string       `json:"editor_name,omitempty"`
	Event      AuditLogEvent `json:"event"`
}
