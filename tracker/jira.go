package tracker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	jira "github.com/andygrunwald/go-jira"
	"github.com/synctools/tracksync/config"
	"github.com/synctools/tracksync/logger"
	"github.com/synctools/tracksync/model"
	"go.uber.org/zap"
)

// Named priority levels as configured on the jira server, best first.
var jiraPriorityLevels = map[int][]string{
	1: {"Highest", "Very High"},
	2: {"High"},
	3: {"Medium"},
	4: {"Low"},
	5: {"Lowest", "Very Low"},
}

// Estimated story point custom field of the jira project.
const jiraStoryPointField = "customfield_10224"

// Parent epic custom field of the jira project.
const jiraEpicLinkField = "customfield_11420"

type jiraTracker struct {
	client   *jira.Client
	project  string
	hostname string
}

func newJiraTracker(cfg config.TrackerConfig) (*jiraTracker, error) {
	transport := jira.BearerAuthTransport{Token: cfg.Token}
	client, err := jira.NewClient(transport.Client(), cfg.Hostname)
	if err != nil {
		return nil, fmt.Errorf("failed to connect jira at '%s': %w", cfg.Hostname, err)
	}
	return &jiraTracker{
		client:   client,
		project:  cfg.Project,
		hostname: strings.TrimSuffix(cfg.Hostname, "/"),
	}, nil
}

func (t *jiraTracker) Type() model.TrackerType {
	return model.TRACKER_TYPE_JIRA
}

func (t *jiraTracker) normalizeIssue(issue *jira.Issue) (*model.Ticket, error) {
	status, err := model.NormalizeStatus(model.TRACKER_TYPE_JIRA, issue.Fields.Status.Name)
	if err != nil {
		return nil, err
	}
	var assignees []string
	if issue.Fields.Assignee != nil {
		assignees = append(assignees, issue.Fields.Assignee.Name)
	}
	var component string
	if len(issue.Fields.Components) > 0 {
		component = issue.Fields.Components[0].Name
	}
	ticketType := model.TICKET_TYPE_STORY
	if issue.Fields.Type.Name == string(model.TICKET_TYPE_EPIC) {
		ticketType = model.TICKET_TYPE_EPIC
	}
	var parent string
	if epic, ok := issue.Fields.Unknowns[jiraEpicLinkField]; ok && epic != nil {
		parent = fmt.Sprintf("%v", epic)
	}
	return &model.Ticket{
		Tracker:     model.TRACKER_TYPE_JIRA,
		ID:          issue.Key,
		Title:       issue.Fields.Summary,
		Description: issue.Fields.Description,
		Assignees:   assignees,
		URL:         fmt.Sprintf("%s/browse/%s", t.hostname, issue.Key),
		Status:      status,
		Component:   component,
		Labels:      issue.Fields.Labels,
		Priority:    t.priority(issue),
		StoryPoint:  t.storyPoint(issue),
		Type:        ticketType,
		Parent:      parent,
	}, nil
}

func (t *jiraTracker) priority(issue *jira.Issue) int {
	if issue.Fields.Priority == nil {
		return 0
	}
	if id, err := strconv.Atoi(issue.Fields.Priority.ID); err == nil && id >= 1 && id <= 5 {
		return id
	}
	for level, names := range jiraPriorityLevels {
		for _, name := range names {
			if issue.Fields.Priority.Name == name {
				return level
			}
		}
	}
	// priority is set but matches no defined level
	return 5
}

// PriorityNameFromLevel maps a numeric priority level back to the first
// configured jira priority name.
func PriorityNameFromLevel(level int) (string, error) {
	names, ok := jiraPriorityLevels[level]
	if !ok {
		return "", fmt.Errorf("priority level %d is not supported", level)
	}
	return names[0], nil
}

func (t *jiraTracker) storyPoint(issue *jira.Issue) int {
	if raw, ok := issue.Fields.Unknowns[jiraStoryPointField]; ok && raw != nil {
		if points, ok := raw.(float64); ok {
			return int(points)
		}
	}
	return StoryPointFromLabels(issue.Fields.Labels)
}

func buildJQL(project string, condition *config.Condition) string {
	clauses := []string{fmt.Sprintf("project=%s", project)}
	if condition != nil {
		if condition.State != "" {
			clauses = append(clauses, fmt.Sprintf("status = '%s'", condition.State))
		}
		if len(condition.Labels) > 0 {
			quoted := make([]string, 0, len(condition.Labels))
			for _, label := range condition.Labels {
				quoted = append(quoted, fmt.Sprintf("'%s'", label))
			}
			clauses = append(clauses, fmt.Sprintf("labels in (%s)", strings.Join(quoted, ",")))
		}
		if condition.Assignee != "" {
			clauses = append(clauses, fmt.Sprintf("assignee = '%s'", condition.Assignee))
		}
		if exclude := condition.Exclude; exclude != nil {
			if exclude.State != "" {
				clauses = append(clauses, fmt.Sprintf("status != %s", exclude.State))
			}
			if len(exclude.Labels) > 0 {
				clauses = append(clauses, fmt.Sprintf("labels not in (%s)", strings.Join(exclude.Labels, ",")))
			}
			if exclude.Assignee != "" {
				clauses = append(clauses, fmt.Sprintf("assignee != %s", exclude.Assignee))
			}
		}
	}
	return strings.Join(clauses, " AND ")
}

func (t *jiraTracker) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	issue, _, err := t.client.Issue.GetWithContext(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	return t.normalizeIssue(issue)
}

func (t *jiraTracker) GetTickets(ctx context.Context, condition *config.Condition) ([]*model.Ticket, error) {
	jql := buildJQL(t.project, condition)
	logger.Debug("searching jira issues", zap.String("jql", jql))
	tickets := make([]*model.Ticket, 0)
	opts := &jira.SearchOptions{MaxResults: 100}
	for {
		issues, resp, err := t.client.Issue.SearchWithContext(ctx, jql, opts)
		if err != nil {
			return nil, err
		}
		for i := range issues {
			ticket, err := t.normalizeIssue(&issues[i])
			if err != nil {
				return nil, err
			}
			// epics go first so that their stories can link the parent
			if ticket.Type == model.TICKET_TYPE_EPIC {
				tickets = append([]*model.Ticket{ticket}, tickets...)
			} else {
				tickets = append(tickets, ticket)
			}
		}
		if resp.StartAt+len(issues) >= resp.Total || len(issues) == 0 {
			break
		}
		opts.StartAt = resp.StartAt + len(issues)
	}
	return tickets, nil
}

func (t *jiraTracker) CreateTicket(ctx context.Context, draft *Draft) (string, error) {
	fields := &jira.IssueFields{
		Project:     jira.Project{Key: t.project},
		Type:        jira.IssueType{Name: string(model.TICKET_TYPE_STORY)},
		Summary:     draft.Title,
		Description: draft.Description,
		Labels:      jiraLabels(draft.Labels),
	}
	if draft.Assignee != "" {
		fields.Assignee = &jira.User{Name: draft.Assignee}
	}
	issue, _, err := t.client.Issue.CreateWithContext(ctx, &jira.Issue{Fields: fields})
	if err != nil {
		return "", err
	}
	return issue.Key, nil
}

// jira labels cannot contain spaces
func jiraLabels(labels []string) []string {
	modified := make([]string, 0, len(labels))
	for _, label := range labels {
		modified = append(modified, strings.ReplaceAll(label, " ", "_"))
	}
	return modified
}

func (t *jiraTracker) UpdateTicket(ctx context.Context, id string, fields Fields) error {
	update := make(map[string]interface{})
	if fields.Title != nil {
		update["summary"] = *fields.Title
	}
	if fields.Description != nil {
		update["description"] = *fields.Description
	}
	if fields.Assignee != nil {
		update["assignee"] = map[string]string{"name": *fields.Assignee}
	}
	if fields.Labels != nil {
		update["labels"] = jiraLabels(*fields.Labels)
	}
	if fields.StoryPoint != nil {
		update[jiraStoryPointField] = *fields.StoryPoint
	}
	if len(update) == 0 {
		return nil
	}
	if _, err := t.client.Issue.UpdateIssueWithContext(ctx, id, map[string]interface{}{"fields": update}); err != nil {
		return fmt.Errorf("failed to update jira issue %s: %w", id, err)
	}
	return nil
}

// UpdateTicketState fires the jira transition whose target status
// normalizes to the requested one.
func (t *jiraTracker) UpdateTicketState(ctx context.Context, ticket *model.Ticket, status model.NormalizedStatus) error {
	if ticket.Status == status {
		return nil
	}
	transitions, _, err := t.client.Issue.GetTransitionsWithContext(ctx, ticket.ID)
	if err != nil {
		return err
	}
	for _, transition := range transitions {
		normalized, err := model.NormalizeStatus(model.TRACKER_TYPE_JIRA, transition.To.Name)
		if err != nil {
			continue
		}
		if normalized == status {
			if _, err := t.client.Issue.DoTransitionWithContext(ctx, ticket.ID, transition.ID); err != nil {
				return fmt.Errorf("failed to transition jira issue %s to '%s': %w", ticket.ID, status, err)
			}
			return nil
		}
	}
	return fmt.Errorf("no jira transition from '%s' to '%s' for issue %s", ticket.Status, status, ticket.ID)
}

func (t *jiraTracker) CreateLabel(ctx context.Context, name string, color string) error {
	// jira labels need no registration, they are created with the ticket
	return nil
}
