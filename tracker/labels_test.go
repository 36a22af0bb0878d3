package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorityFromLabels(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"priority label":        testPriorityLabel,
		"priority capped at 5":  testPriorityCapped,
		"no priority label":     testNoPriorityLabel,
		"story point label":     testStoryPointLabel,
		"no story point label":  testNoStoryPointLabel,
		"time estimate mapping": testTimeEstimate,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t)
		})
	}
}

func testPriorityLabel(t *testing.T) {
	assert.Equal(t, 2, PriorityFromLabels([]string{"bug", "prio 2"}))
	assert.Equal(t, 1, PriorityFromLabels([]string{"prio1"}))
}

func testPriorityCapped(t *testing.T) {
	assert.Equal(t, 5, PriorityFromLabels([]string{"prio 9"}))
}

func testNoPriorityLabel(t *testing.T) {
	assert.Equal(t, 0, PriorityFromLabels([]string{"bug", "backend"}))
	assert.Equal(t, 0, PriorityFromLabels(nil))
}

func testStoryPointLabel(t *testing.T) {
	assert.Equal(t, 3, StoryPointFromLabels([]string{"3 pts"}))
	assert.Equal(t, 8, StoryPointFromLabels([]string{"feature", "8pts"}))
}

func testNoStoryPointLabel(t *testing.T) {
	assert.Equal(t, 0, StoryPointFromLabels([]string{"feature"}))
}

func testTimeEstimate(t *testing.T) {
	points, err := TimeEstimateToStoryPoint(16 * 3600)
	assert.NoError(t, err)
	assert.Equal(t, 2, points)

	_, err = TimeEstimateToStoryPoint(-1)
	assert.Error(t, err)
}
