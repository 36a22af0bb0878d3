package config

import (
	"fmt"

	"github.com/synctools/tracksync/model"
	"github.com/synctools/tracksync/workflow"
)

// Condition filters the tickets fetched from a source tracker. The special
// value "empty" on exclude conditions matches tickets with no value at all.
type Condition struct {
	State    string   `json:"state" mapstructure:"state"`
	Labels   []string `json:"labels" mapstructure:"labels"`
	Assignee string   `json:"assignee" mapstructure:"assignee"`

	Exclude *Condition `json:"exclude" mapstructure:"exclude"`
}

// TrackerConfig is the union of the per-tracker connection settings. Which
// fields are required depends on the tracker type, see Validate.
type TrackerConfig struct {
	Hostname     string   `json:"hostname" mapstructure:"hostname"`
	Project      string   `json:"project" mapstructure:"project"`
	Group        string   `json:"group" mapstructure:"group"`
	Repositories []string `json:"repository" mapstructure:"repository"`
	Projects     []string `json:"projects" mapstructure:"projects"`
	Token        string   `json:"token" mapstructure:"token"`
	Username     string   `json:"username" mapstructure:"username"`

	// RTC only.
	FileAgainst     string                    `json:"file_against" mapstructure:"file_against"`
	ProjectScope    string                    `json:"project_scope" mapstructure:"project_scope"`
	WorkflowID      string                    `json:"workflow_id" mapstructure:"workflow_id"`
	StateTransition []workflow.TransitionRule `json:"state_transition" mapstructure:"state_transition"`

	Condition Condition `json:"condition" mapstructure:"condition"`
}

type Config struct {
	Source      []string                 `json:"source" mapstructure:"source"`
	Destination []string                 `json:"destination" mapstructure:"destination"`
	User        []map[string]string      `json:"user" mapstructure:"user"`
	Tracker     map[string]TrackerConfig `json:"tracker" mapstructure:"tracker"`

	DryRun       bool
	CsvFile      string
	LogFile      string
	Debug        bool
	SyncInterval int
	HttpPort     int
}

// Users converts the flat user entries of the config file (name plus one key
// per tracker) into the user directory model.
func (c *Config) Users() []model.User {
	users := make([]model.User, 0, len(c.User))
	for _, entry := range c.User {
		user := model.User{Accounts: make(map[string]string)}
		for key, val := range entry {
			if key == "name" {
				user.Name = val
				continue
			}
			user.Accounts[key] = val
		}
		users = append(users, user)
	}
	return users
}

// DestinationType returns the configured destination tracker type.
func (c *Config) DestinationType() model.TrackerType {
	return model.TrackerType(c.Destination[0])
}

func (c *Config) Validate() error {
	if len(c.Source) == 0 {
		return fmt.Errorf("at least one source tracker is required")
	}
	if len(c.Destination) != 1 {
		return fmt.Errorf("exactly one destination tracker is required, got %d", len(c.Destination))
	}
	for _, name := range append(append([]string{}, c.Source...), c.Destination...) {
		trackerConfig, ok := c.Tracker[name]
		if !ok {
			return fmt.Errorf("missing tracker configuration for '%s'", name)
		}
		if err := validateTracker(model.TrackerType(name), trackerConfig); err != nil {
			return err
		}
	}
	for _, entry := range c.User {
		if entry["name"] == "" {
			return fmt.Errorf("user entry without name")
		}
	}
	return nil
}

func validateTracker(trackerType model.TrackerType, cfg TrackerConfig) error {
	var missing []string
	require := func(name string, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}
	switch trackerType {
	case model.TRACKER_TYPE_GITHUB:
		require("project", cfg.Project)
		require("token", cfg.Token)
		if len(cfg.Repositories) == 0 {
			missing = append(missing, "repository")
		}
	case model.TRACKER_TYPE_GITLAB:
		require("group", cfg.Group)
		require("token", cfg.Token)
		if len(cfg.Projects) == 0 {
			missing = append(missing, "projects")
		}
	case model.TRACKER_TYPE_JIRA:
		require("hostname", cfg.Hostname)
		require("project", cfg.Project)
		require("token", cfg.Token)
	case model.TRACKER_TYPE_RTC:
		require("hostname", cfg.Hostname)
		require("project", cfg.Project)
	default:
		return fmt.Errorf("not supported tracker '%s'", trackerType)
	}
	if len(missing) > 0 {
		return fmt.Errorf("tracker '%s' configuration is missing %v", trackerType, missing)
	}
	return nil
}

// DefaultStateTransitions is the transition table of the default RTC story
// workflow (com.ibm.team.apt.storyWorkflow). Deployments using a customized
// workflow override it with tracker.rtc.state_transition.
func DefaultStateTransitions() []workflow.TransitionRule {
	return []workflow.TransitionRule{
		{Action: "Start Working", From: "New", To: "In Development"},
		{Action: "Complete Development", From: "In Development", To: "In Test"},
		{Action: "Accept", From: "In Test", To: "Done"},
		{Action: "Reopen", From: "Done", To: "In Development"},
		{Action: "Reject", From: "In Test", To: "In Development"},
		{Action: "Defer", From: "In Development", To: "New"},
	}
}

// DefaultWorkflowID is the workflow whose actions are resolved on the RTC
// server unless overridden per deployment.
const DefaultWorkflowID = "com.ibm.team.apt.storyWorkflow"
