package tracker

import (
	"fmt"
	"regexp"
	"strconv"
)

// Label conventions carried across trackers: `prio 2` encodes priority,
// `3 pts` encodes the story point estimate, sprint labels are created with
// the default color below.
var priorityLabelRegex = regexp.MustCompile(`prio\s*(\d+)`)
var storyPointLabelRegex = regexp.MustCompile(`(\d+)\s*pts`)

const SPRINT_LABEL_COLOR = "#007bff"

const HOURS_PER_STORYPOINT = 8

// PriorityFromLabels extracts the priority level from issue labels, capped
// at 5 (lowest). Returns 0 when no priority label is present.
func PriorityFromLabels(labels []string) int {
	for _, label := range labels {
		match := priorityLabelRegex.FindStringSubmatch(label)
		if match != nil {
			priority, _ := strconv.Atoi(match[1])
			if priority > 5 {
				return 5
			}
			return priority
		}
	}
	return 0
}

// StoryPointFromLabels extracts the story point estimate from issue labels.
// Returns 0 when no story point label is present.
func StoryPointFromLabels(labels []string) int {
	for _, label := range labels {
		match := storyPointLabelRegex.FindStringSubmatch(label)
		if match != nil {
			points, _ := strconv.Atoi(match[1])
			return points
		}
	}
	return 0
}

// TimeEstimateToStoryPoint converts an estimated time in seconds to story
// points, at HOURS_PER_STORYPOINT hours per point.
func TimeEstimateToStoryPoint(seconds int) (int, error) {
	if seconds < 0 {
		return 0, fmt.Errorf("seconds must be non-negative, got %d", seconds)
	}
	return seconds / 3600 / HOURS_PER_STORYPOINT, nil
}
