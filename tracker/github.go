package tracker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/go-github/v58/github"
	"github.com/synctools/tracksync/config"
	"github.com/synctools/tracksync/logger"
	"github.com/synctools/tracksync/model"
	"go.uber.org/zap"
)

type githubTracker struct {
	client       *github.Client
	project      string
	repositories []string
}

func newGithubTracker(cfg config.TrackerConfig) (*githubTracker, error) {
	client := github.NewClient(nil).WithAuthToken(cfg.Token)
	if cfg.Hostname != "" && cfg.Hostname != "api.github.com" {
		baseURL := fmt.Sprintf("https://%s", cfg.Hostname)
		var err error
		client, err = client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github hostname '%s': %w", cfg.Hostname, err)
		}
	}
	return &githubTracker{
		client:       client,
		project:      cfg.Project,
		repositories: cfg.Repositories,
	}, nil
}

func (t *githubTracker) Type() model.TrackerType {
	return model.TRACKER_TYPE_GITHUB
}

func (t *githubTracker) repository() (string, error) {
	if len(t.repositories) == 1 {
		return t.repositories[0], nil
	}
	if len(t.repositories) == 0 {
		return "", fmt.Errorf("missing github repository information")
	}
	return "", fmt.Errorf("more than one github repository is configured, please specify the working repository")
}

func (t *githubTracker) normalizeIssue(ctx context.Context, issue *github.Issue, repo string) (*model.Ticket, error) {
	status, err := model.NormalizeStatus(model.TRACKER_TYPE_GITHUB, issue.GetState())
	if err != nil {
		return nil, err
	}
	assignees := make([]string, 0, len(issue.Assignees))
	for _, assignee := range issue.Assignees {
		assignees = append(assignees, assignee.GetLogin())
	}
	labels := make([]string, 0, len(issue.Labels))
	for _, label := range issue.Labels {
		labels = append(labels, label.GetName())
	}
	children, err := t.subIssues(ctx, repo, issue.GetNumber())
	if err != nil {
		return nil, fmt.Errorf("error when retrieving sub issues of issue %d: %w", issue.GetNumber(), err)
	}
	ticketType := model.TICKET_TYPE_STORY
	if len(children) > 0 {
		ticketType = model.TICKET_TYPE_EPIC
	}
	return &model.Ticket{
		Tracker:     model.TRACKER_TYPE_GITHUB,
		ID:          strconv.Itoa(issue.GetNumber()),
		Title:       issue.GetTitle(),
		Description: issue.GetBody(),
		Assignees:   assignees,
		URL:         issue.GetHTMLURL(),
		Status:      status,
		Component:   repo,
		Labels:      labels,
		Priority:    PriorityFromLabels(labels),
		StoryPoint:  StoryPointFromLabels(labels),
		Type:        ticketType,
		Children:    children,
	}, nil
}

// subIssues lists the sub issues of an issue. Parent lookup has no GitHub
// API yet, so hierarchy is built downwards only.
func (t *githubTracker) subIssues(ctx context.Context, repo string, number int) ([]model.TicketRef, error) {
	url := fmt.Sprintf("repos/%s/%s/issues/%d/sub_issues", t.project, repo, number)
	req, err := t.client.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	var subIssues []struct {
		Number        int    `json:"number"`
		RepositoryURL string `json:"repository_url"`
	}
	if _, err := t.client.Do(ctx, req, &subIssues); err != nil {
		return nil, err
	}
	refs := make([]model.TicketRef, 0, len(subIssues))
	for _, sub := range subIssues {
		parts := strings.Split(sub.RepositoryURL, "/")
		refs = append(refs, model.TicketRef{
			Repository: parts[len(parts)-1],
			ID:         strconv.Itoa(sub.Number),
		})
	}
	return refs, nil
}

func (t *githubTracker) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	repo, err := t.repository()
	if err != nil {
		return nil, err
	}
	number, err := strconv.Atoi(id)
	if err != nil {
		return nil, fmt.Errorf("invalid github issue number '%s'", id)
	}
	issue, _, err := t.client.Issues.Get(ctx, t.project, repo, number)
	if err != nil {
		return nil, err
	}
	return t.normalizeIssue(ctx, issue, repo)
}

func (t *githubTracker) GetTickets(ctx context.Context, condition *config.Condition) ([]*model.Ticket, error) {
	opts := &github.IssueListByRepoOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var exclude *config.Condition
	if condition != nil {
		opts.State = condition.State
		opts.Labels = condition.Labels
		opts.Assignee = condition.Assignee
		exclude = condition.Exclude
	}
	tickets := make([]*model.Ticket, 0)
	for _, repo := range t.repositories {
		opts.Page = 0
		for {
			issues, resp, err := t.client.Issues.ListByRepo(ctx, t.project, repo, opts)
			if err != nil {
				return nil, err
			}
			for _, issue := range issues {
				if issue.IsPullRequest() {
					continue
				}
				ticket, err := t.normalizeIssue(ctx, issue, repo)
				if err != nil {
					return nil, err
				}
				if Excluded(ticket, exclude) {
					logger.Debug("ticket excluded by condition", zap.String("id", ticket.ID))
					continue
				}
				// sub issues must be processed before the epics
				// referencing them
				if ticket.Type == model.TICKET_TYPE_STORY {
					tickets = append([]*model.Ticket{ticket}, tickets...)
				} else {
					tickets = append(tickets, ticket)
				}
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
	}
	return tickets, nil
}

func (t *githubTracker) CreateTicket(ctx context.Context, draft *Draft) (string, error) {
	repo, err := t.repository()
	if err != nil {
		return "", err
	}
	req := &github.IssueRequest{
		Title: github.String(draft.Title),
		Body:  github.String(draft.Description),
	}
	if draft.Assignee != "" {
		req.Assignee = github.String(draft.Assignee)
	}
	if len(draft.Labels) > 0 {
		req.Labels = &draft.Labels
	}
	issue, _, err := t.client.Issues.Create(ctx, t.project, repo, req)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(issue.GetNumber()), nil
}

func (t *githubTracker) UpdateTicket(ctx context.Context, id string, fields Fields) error {
	repo, err := t.repository()
	if err != nil {
		return err
	}
	number, err := strconv.Atoi(id)
	if err != nil {
		return fmt.Errorf("invalid github issue number '%s'", id)
	}
	req := &github.IssueRequest{
		Title:    fields.Title,
		Body:     fields.Description,
		Assignee: fields.Assignee,
		Labels:   fields.Labels,
	}
	if _, _, err := t.client.Issues.Edit(ctx, t.project, repo, number, req); err != nil {
		return fmt.Errorf("failed to update github issue %s: %w", id, err)
	}
	return nil
}

func (t *githubTracker) UpdateTicketState(ctx context.Context, ticket *model.Ticket, status model.NormalizedStatus) error {
	if ticket.Status == status {
		return nil
	}
	state, err := model.NativeStatus(model.TRACKER_TYPE_GITHUB, status)
	if err != nil {
		return err
	}
	repo, err := t.repository()
	if err != nil {
		return err
	}
	number, err := strconv.Atoi(ticket.ID)
	if err != nil {
		return fmt.Errorf("invalid github issue number '%s'", ticket.ID)
	}
	req := &github.IssueRequest{State: github.String(state)}
	if _, _, err := t.client.Issues.Edit(ctx, t.project, repo, number, req); err != nil {
		return fmt.Errorf("failed to change state of github issue %s to '%s': %w", ticket.ID, state, err)
	}
	return nil
}

func (t *githubTracker) CreateLabel(ctx context.Context, name string, color string) error {
	repo, err := t.repository()
	if err != nil {
		return err
	}
	opts := &github.ListOptions{PerPage: 100}
	for {
		labels, resp, err := t.client.Issues.ListLabels(ctx, t.project, repo, opts)
		if err != nil {
			return err
		}
		for _, label := range labels {
			if label.GetName() == name {
				return nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	if color == "" {
		color = SPRINT_LABEL_COLOR
	}
	label := &github.Label{
		Name:  github.String(name),
		Color: github.String(strings.TrimPrefix(color, "#")),
	}
	_, _, err = t.client.Issues.CreateLabel(ctx, t.project, repo, label)
	return err
}
