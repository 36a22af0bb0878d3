package tracker

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/synctools/tracksync/config"
	"github.com/synctools/tracksync/logger"
	"github.com/synctools/tracksync/model"
	"github.com/synctools/tracksync/tracker/rtc"
	"github.com/synctools/tracksync/workflow"
	"go.uber.org/zap"
)

// rtc priorities are titled like "2 - High"; only the level digit matters.
var rtcPriorityRegex = regexp.MustCompile(`^(\d)`)

type rtcTracker struct {
	client       *rtc.Client
	rules        []workflow.TransitionRule
	projectScope string
}

func newRtcTracker(cfg config.TrackerConfig) (*rtcTracker, error) {
	workflowID := cfg.WorkflowID
	if workflowID == "" {
		workflowID = config.DefaultWorkflowID
	}
	rules := cfg.StateTransition
	if len(rules) == 0 {
		rules = config.DefaultStateTransitions()
	}
	// fail early on a broken transition table
	if _, err := workflow.BuildGraph(rules); err != nil {
		return nil, fmt.Errorf("invalid rtc state transition definition: %w", err)
	}
	client, err := rtc.NewClient(context.Background(), rtc.Options{
		Hostname:    cfg.Hostname,
		Project:     cfg.Project,
		Username:    cfg.Username,
		Token:       cfg.Token,
		FileAgainst: cfg.FileAgainst,
		WorkflowID:  workflowID,
	})
	if err != nil {
		return nil, err
	}
	return &rtcTracker{
		client:       client,
		rules:        rules,
		projectScope: cfg.ProjectScope,
	}, nil
}

func (t *rtcTracker) Type() model.TrackerType {
	return model.TRACKER_TYPE_RTC
}

func (t *rtcTracker) normalizeWorkItem(ctx context.Context, workItem *rtc.WorkItem) (*model.Ticket, error) {
	// only stories follow the configured workflow; other work item types
	// are treated as open
	status := model.STATUS_OPEN
	if workItem.Type == string(model.TICKET_TYPE_STORY) {
		var err error
		status, err = model.NormalizeStatus(model.TRACKER_TYPE_RTC, workItem.Status)
		if err != nil {
			return nil, err
		}
	}
	var assignees []string
	if workItem.Contributor != nil {
		assignees = append(assignees, strings.ToLower(workItem.Contributor.ID()))
	}
	ticketType := model.TICKET_TYPE_STORY
	if workItem.Type == string(model.TICKET_TYPE_EPIC) {
		ticketType = model.TICKET_TYPE_EPIC
	}
	var parent string
	if len(workItem.Parents) > 0 {
		parent = workItem.Parents[0].ID()
	}
	children := make([]model.TicketRef, 0, len(workItem.Children))
	for _, child := range workItem.Children {
		children = append(children, model.TicketRef{ID: child.ID()})
	}
	return &model.Ticket{
		Tracker:     model.TRACKER_TYPE_RTC,
		ID:          workItem.Identifier.String(),
		Title:       workItem.Title,
		Description: workItem.Description,
		Assignees:   assignees,
		URL:         workItem.About,
		Status:      status,
		Component:   t.projectScope,
		Version:     t.plannedFor(ctx, workItem),
		StoryPoint:  int(workItem.StoryPoint),
		Priority:    t.priority(ctx, workItem),
		Type:        ticketType,
		Parent:      parent,
		Children:    children,
	}, nil
}

func (t *rtcTracker) plannedFor(ctx context.Context, workItem *rtc.WorkItem) string {
	if workItem.PlannedFor == nil || workItem.PlannedFor.Resource == "" {
		return ""
	}
	plannedFor, err := t.client.GetInfoFromURL(ctx, workItem.PlannedFor.Resource, "dcterms:title")
	if err != nil {
		logger.Warn("could not resolve plannedFor of rtc work item",
			zap.String("id", workItem.Identifier.String()), zap.Error(err))
		return ""
	}
	return plannedFor
}

func (t *rtcTracker) priority(ctx context.Context, workItem *rtc.WorkItem) int {
	if workItem.Priority == nil || workItem.Priority.Resource == "" {
		return 0
	}
	title, err := t.client.GetInfoFromURL(ctx, workItem.Priority.Resource, "dcterms:title")
	if err != nil {
		return 0
	}
	matched := rtcPriorityRegex.FindStringSubmatch(title)
	if matched == nil {
		// unassigned priority literal
		return 0
	}
	level, _ := strconv.Atoi(matched[1])
	return level
}

func (t *rtcTracker) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	workItem, err := t.client.GetWorkItem(ctx, id)
	if err != nil {
		return nil, err
	}
	return t.normalizeWorkItem(ctx, workItem)
}

func (t *rtcTracker) GetTickets(ctx context.Context, condition *config.Condition) ([]*model.Ticket, error) {
	return nil, fmt.Errorf("rtc is only supported as sync destination, fetching by condition is not implemented")
}

func (t *rtcTracker) CreateTicket(ctx context.Context, draft *Draft) (string, error) {
	return t.client.CreateWorkItem(ctx, &rtc.Draft{
		Title:       draft.Title,
		Description: draft.Description,
		StoryPoint:  draft.StoryPoint,
		Assignee:    draft.Assignee,
		Labels:      draft.Labels,
	})
}

func (t *rtcTracker) UpdateTicket(ctx context.Context, id string, fields Fields) error {
	if fields.Assignee != nil {
		return fmt.Errorf("updating the contributor of an rtc work item is not supported")
	}
	return t.client.UpdateWorkItem(ctx, id, rtc.Fields{
		Title:       fields.Title,
		Description: fields.Description,
		Labels:      fields.Labels,
		StoryPoint:  fields.StoryPoint,
	})
}

// UpdateTicketState resolves the sequence of workflow actions between the
// native states of the two statuses and fires them in order.
func (t *rtcTracker) UpdateTicketState(ctx context.Context, ticket *model.Ticket, status model.NormalizedStatus) error {
	if ticket.Status == status {
		return nil
	}
	currentState, err := model.NativeStatus(model.TRACKER_TYPE_RTC, ticket.Status)
	if err != nil {
		return err
	}
	targetState, err := model.NativeStatus(model.TRACKER_TYPE_RTC, status)
	if err != nil {
		return err
	}
	changer, err := workflow.NewStateChanger(t.rules, &rtcActionExecutor{ctx: ctx, client: t.client})
	if err != nil {
		return err
	}
	return changer.ApplyStateChange(ticket.ID, currentState, targetState)
}

func (t *rtcTracker) CreateLabel(ctx context.Context, name string, color string) error {
	// rtc tags are free-form, no registration needed
	return nil
}

// rtcActionExecutor adapts the OSLC client to the workflow action executor.
type rtcActionExecutor struct {
	ctx    context.Context
	client *rtc.Client
}

func (e *rtcActionExecutor) ExecuteAction(ticketID string, action string) error {
	return e.client.ExecuteAction(e.ctx, ticketID, action)
}
