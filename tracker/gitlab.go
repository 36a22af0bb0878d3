package tracker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/synctools/tracksync/config"
	"github.com/synctools/tracksync/logger"
	"github.com/synctools/tracksync/model"
	gitlab "github.com/xanzy/go-gitlab"
	"go.uber.org/zap"
)

type gitlabTracker struct {
	client   *gitlab.Client
	group    string
	projects []string
}

func newGitlabTracker(cfg config.TrackerConfig) (*gitlabTracker, error) {
	hostname := cfg.Hostname
	if hostname == "" {
		hostname = "https://gitlab.com"
	}
	client, err := gitlab.NewClient(cfg.Token, gitlab.WithBaseURL(hostname))
	if err != nil {
		return nil, fmt.Errorf("failed to connect gitlab at '%s': %w", hostname, err)
	}
	return &gitlabTracker{
		client:   client,
		group:    cfg.Group,
		projects: cfg.Projects,
	}, nil
}

func (t *gitlabTracker) Type() model.TrackerType {
	return model.TRACKER_TYPE_GITLAB
}

func (t *gitlabTracker) projectPath(project string) (string, error) {
	if project != "" {
		return fmt.Sprintf("%s/%s", t.group, project), nil
	}
	if len(t.projects) == 1 {
		return fmt.Sprintf("%s/%s", t.group, t.projects[0]), nil
	}
	if len(t.projects) == 0 {
		return "", fmt.Errorf("missing gitlab project information")
	}
	return "", fmt.Errorf("more than one gitlab project is configured, please specify the working project")
}

func (t *gitlabTracker) normalizeIssue(issue *gitlab.Issue, project string) (*model.Ticket, error) {
	status, err := model.NormalizeStatus(model.TRACKER_TYPE_GITLAB, issue.State)
	if err != nil {
		return nil, err
	}
	var assignees []string
	if issue.Assignee != nil {
		assignees = append(assignees, issue.Assignee.Username)
	}
	labels := []string(issue.Labels)
	// gitlab has no API for sub/parent issues, only linked issues; the
	// hierarchy stays flat
	return &model.Ticket{
		Tracker:     model.TRACKER_TYPE_GITLAB,
		ID:          strconv.Itoa(issue.IID),
		Title:       issue.Title,
		Description: issue.Description,
		Assignees:   assignees,
		URL:         issue.WebURL,
		Status:      status,
		Component:   project,
		Labels:      labels,
		Priority:    PriorityFromLabels(labels),
		StoryPoint:  StoryPointFromLabels(labels),
		Type:        model.TICKET_TYPE_STORY,
	}, nil
}

func (t *gitlabTracker) userID(username string) (int, error) {
	users, _, err := t.client.Users.ListUsers(&gitlab.ListUsersOptions{
		Username: gitlab.Ptr(username),
	})
	if err != nil || len(users) == 0 {
		return 0, fmt.Errorf("could not find user name '%s' on gitlab", username)
	}
	return users[0].ID, nil
}

func (t *gitlabTracker) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	path, err := t.projectPath("")
	if err != nil {
		return nil, err
	}
	iid, err := strconv.Atoi(id)
	if err != nil {
		return nil, fmt.Errorf("invalid gitlab issue iid '%s'", id)
	}
	issue, _, err := t.client.Issues.GetIssue(path, iid, gitlab.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return t.normalizeIssue(issue, t.projects[0])
}

func (t *gitlabTracker) GetTickets(ctx context.Context, condition *config.Condition) ([]*model.Ticket, error) {
	opts := &gitlab.ListProjectIssuesOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}
	var exclude *config.Condition
	if condition != nil {
		if condition.State != "" {
			opts.State = gitlab.Ptr(condition.State)
		}
		if len(condition.Labels) > 0 {
			labels := gitlab.LabelOptions(condition.Labels)
			opts.Labels = &labels
		}
		if condition.Assignee != "" {
			opts.AssigneeUsername = gitlab.Ptr(condition.Assignee)
		}
		exclude = condition.Exclude
	}
	tickets := make([]*model.Ticket, 0)
	for _, project := range t.projects {
		path, err := t.projectPath(project)
		if err != nil {
			return nil, err
		}
		opts.Page = 0
		for {
			issues, resp, err := t.client.Issues.ListProjectIssues(path, opts, gitlab.WithContext(ctx))
			if err != nil {
				return nil, err
			}
			for _, issue := range issues {
				ticket, err := t.normalizeIssue(issue, project)
				if err != nil {
					return nil, err
				}
				if Excluded(ticket, exclude) {
					logger.Debug("ticket excluded by condition", zap.String("id", ticket.ID))
					continue
				}
				tickets = append(tickets, ticket)
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
	}
	return tickets, nil
}

func (t *gitlabTracker) CreateTicket(ctx context.Context, draft *Draft) (string, error) {
	path, err := t.projectPath("")
	if err != nil {
		return "", err
	}
	opts := &gitlab.CreateIssueOptions{
		Title:       gitlab.Ptr(draft.Title),
		Description: gitlab.Ptr(draft.Description),
	}
	if draft.Assignee != "" {
		assigneeID, err := t.userID(draft.Assignee)
		if err != nil {
			return "", err
		}
		opts.AssigneeIDs = &[]int{assigneeID}
	}
	if len(draft.Labels) > 0 {
		labels := gitlab.LabelOptions(draft.Labels)
		opts.Labels = &labels
	}
	issue, _, err := t.client.Issues.CreateIssue(path, opts, gitlab.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return strconv.Itoa(issue.IID), nil
}

func (t *gitlabTracker) UpdateTicket(ctx context.Context, id string, fields Fields) error {
	path, err := t.projectPath("")
	if err != nil {
		return err
	}
	iid, err := strconv.Atoi(id)
	if err != nil {
		return fmt.Errorf("invalid gitlab issue iid '%s'", id)
	}
	opts := &gitlab.UpdateIssueOptions{
		Title:       fields.Title,
		Description: fields.Description,
	}
	if fields.Labels != nil {
		labels := gitlab.LabelOptions(*fields.Labels)
		opts.Labels = &labels
	}
	if fields.Assignee != nil {
		if *fields.Assignee == "" {
			opts.AssigneeIDs = &[]int{}
		} else {
			assigneeID, err := t.userID(*fields.Assignee)
			if err != nil {
				return err
			}
			opts.AssigneeIDs = &[]int{assigneeID}
		}
	}
	if _, _, err := t.client.Issues.UpdateIssue(path, iid, opts, gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to update gitlab issue %s: %w", id, err)
	}
	return nil
}

func (t *gitlabTracker) UpdateTicketState(ctx context.Context, ticket *model.Ticket, status model.NormalizedStatus) error {
	if ticket.Status == status {
		return nil
	}
	if _, err := model.NativeStatus(model.TRACKER_TYPE_GITLAB, status); err != nil {
		return err
	}
	stateEvent := "reopen"
	if status == model.STATUS_CLOSED {
		stateEvent = "close"
	}
	path, err := t.projectPath("")
	if err != nil {
		return err
	}
	iid, err := strconv.Atoi(ticket.ID)
	if err != nil {
		return fmt.Errorf("invalid gitlab issue iid '%s'", ticket.ID)
	}
	opts := &gitlab.UpdateIssueOptions{StateEvent: gitlab.Ptr(stateEvent)}
	if _, _, err := t.client.Issues.UpdateIssue(path, iid, opts, gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to change state of gitlab issue %s to '%s': %w", ticket.ID, status, err)
	}
	return nil
}

func (t *gitlabTracker) CreateLabel(ctx context.Context, name string, color string) error {
	path, err := t.projectPath("")
	if err != nil {
		return err
	}
	labels, _, err := t.client.Labels.ListLabels(path, &gitlab.ListLabelsOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}, gitlab.WithContext(ctx))
	if err != nil {
		return err
	}
	for _, label := range labels {
		if label.Name == name {
			return nil
		}
	}
	if color == "" {
		color = SPRINT_LABEL_COLOR
	}
	_, _, err = t.client.Labels.CreateLabel(path, &gitlab.CreateLabelOptions{
		Name:  gitlab.Ptr(name),
		Color: gitlab.Ptr(color),
	}, gitlab.WithContext(ctx))
	return err
}
