package rtc

import (
	"encoding/json"
	"strings"
)

// ResourceRef is an OSLC link to another resource.
type ResourceRef struct {
	Resource string `json:"rdf:resource"`
}

// ID returns the trailing path segment of the linked resource, which is the
// work item id for work item links and the user id for contributor links.
func (r ResourceRef) ID() string {
	parts := strings.Split(r.Resource, "/")
	return parts[len(parts)-1]
}

// WorkItem is a work item as returned by the OSLC workitems endpoint with
// JSON accept headers.
type WorkItem struct {
	Identifier  json.Number   `json:"dcterms:identifier"`
	Title       string        `json:"dcterms:title"`
	Description string        `json:"dcterms:description"`
	Type        string        `json:"dcterms:type"`
	About       string        `json:"rdf:about"`
	Status      string        `json:"oslc_cm:status"`
	StoryPoint  float64       `json:"rtc_ext:com.ibm.team.workitem.attribute.storyPointsNumeric"`
	Contributor *ResourceRef  `json:"dcterms:contributor"`
	PlannedFor  *ResourceRef  `json:"rtc_cm:plannedFor"`
	Priority    *ResourceRef  `json:"oslc_cmx:priority"`
	Children    []ResourceRef `json:"rtc_cm:com.ibm.team.workitem.linktype.parentworkitem.children"`
	Parents     []ResourceRef `json:"rtc_cm:com.ibm.team.workitem.linktype.parentworkitem.parent"`
}

// Fields is a partial work item update; nil fields are left untouched.
type Fields struct {
	Title       *string
	Description *string
	Labels      *[]string
	StoryPoint  *int
}

// Draft holds the attributes of a work item to create.
type Draft struct {
	Title       string
	Description string
	StoryPoint  int
	Assignee    string
	Labels      []string
	FileAgainst string
}

// rtc tags cannot contain spaces
func tagList(labels []string) string {
	tags := make([]string, 0, len(labels))
	for _, label := range labels {
		tags = append(tags, strings.ReplaceAll(label, " ", "_"))
	}
	return strings.Join(tags, ", ")
}
