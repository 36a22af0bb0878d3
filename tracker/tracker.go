package tracker

import (
	"context"
	"fmt"

	"github.com/synctools/tracksync/config"
	"github.com/synctools/tracksync/model"
	"github.com/synctools/tracksync/util"
)

// Draft holds the attributes used to create a ticket on a tracker.
type Draft struct {
	Title       string
	Description string
	StoryPoint  int
	Assignee    string
	Labels      []string
}

// Fields is a partial ticket update; nil fields are left untouched.
type Fields struct {
	Title       *string
	Description *string
	Assignee    *string
	Labels      *[]string
	StoryPoint  *int
}

// Tracker is the client of one issue tracker. An implementation is selected
// and connected once at construction; callers never branch on the tracker
// type again.
type Tracker interface {
	Type() model.TrackerType

	GetTicket(ctx context.Context, id string) (*model.Ticket, error)
	GetTickets(ctx context.Context, condition *config.Condition) ([]*model.Ticket, error)
	CreateTicket(ctx context.Context, draft *Draft) (string, error)
	UpdateTicket(ctx context.Context, id string, fields Fields) error

	// UpdateTicketState realizes a normalized status on the tracker, which
	// may require firing a sequence of workflow actions.
	UpdateTicketState(ctx context.Context, ticket *model.Ticket, status model.NormalizedStatus) error

	// CreateLabel ensures the label exists; trackers without a label
	// registry treat this as a no-op.
	CreateLabel(ctx context.Context, name string, color string) error
}

// New connects the tracker client for the given type.
func New(trackerType model.TrackerType, cfg config.TrackerConfig) (Tracker, error) {
	switch trackerType {
	case model.TRACKER_TYPE_GITHUB:
		return newGithubTracker(cfg)
	case model.TRACKER_TYPE_GITLAB:
		return newGitlabTracker(cfg)
	case model.TRACKER_TYPE_JIRA:
		return newJiraTracker(cfg)
	case model.TRACKER_TYPE_RTC:
		return newRtcTracker(cfg)
	}
	return nil, fmt.Errorf("not supported tracker '%s'", trackerType)
}

// SupportedTrackers lists the tracker types New accepts.
func SupportedTrackers() []model.TrackerType {
	return []model.TrackerType{
		model.TRACKER_TYPE_GITHUB,
		model.TRACKER_TYPE_GITLAB,
		model.TRACKER_TYPE_JIRA,
		model.TRACKER_TYPE_RTC,
	}
}

// Excluded reports whether a fetched ticket matches the exclude condition
// and should be skipped. The special value "empty" matches tickets carrying
// no assignee or no labels at all.
func Excluded(ticket *model.Ticket, exclude *config.Condition) bool {
	if exclude == nil {
		return false
	}
	if exclude.Assignee != "" {
		if len(ticket.Assignees) == 0 {
			if exclude.Assignee == "empty" {
				return true
			}
		} else if util.Contains(ticket.Assignees, exclude.Assignee) {
			return true
		}
	}
	for _, label := range exclude.Labels {
		if len(ticket.Labels) == 0 {
			if label == "empty" {
				return true
			}
		} else if util.Contains(ticket.Labels, label) {
			return true
		}
	}
	if exclude.State != "" && string(ticket.Status) == exclude.State {
		return true
	}
	return false
}
