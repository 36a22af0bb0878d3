package model

import (
	"fmt"
	"regexp"
)

type TicketType string

const TICKET_TYPE_EPIC TicketType = "Epic"
const TICKET_TYPE_STORY TicketType = "Story"

// Synced tickets carry their destination id as a title prefix,
// e.g. `[ 1234 ] Title of already synced ticket`.
var syncedTitleRegex = regexp.MustCompile(`^\[\s*(\d+)\s*\]`)

// TicketRef points at a ticket on a specific tracker, used for hierarchy
// links (sub issues may live in another repository of the same project).
type TicketRef struct {
	Repository string
	ID         string
}

// Ticket is the normalized issue record exchanged between trackers.
type Ticket struct {
	Tracker       TrackerType
	ID            string
	Title         string
	Description   string
	Assignees     []string
	URL           string
	Status        NormalizedStatus
	Component     string
	Version       string
	StoryPoint    int
	Priority      int
	Labels        []string
	Type          TicketType
	Parent        string
	Children      []TicketRef
	DestinationID string
}

func (t *Ticket) String() string {
	return fmt.Sprintf("Ticket (%s: ID=%s, type=%s, title=%q)", t.Tracker, t.ID, t.Type, t.Title)
}

// IsSynced reports whether the ticket was already mirrored to the
// destination tracker, and remembers the extracted destination id.
func (t *Ticket) IsSynced() bool {
	match := syncedTitleRegex.FindStringSubmatch(t.Title)
	if match == nil {
		return false
	}
	t.DestinationID = match[1]
	return true
}

// Assignee returns the primary assignee, or empty when unassigned.
func (t *Ticket) Assignee() string {
	if len(t.Assignees) == 0 {
		return ""
	}
	return t.Assignees[0]
}
