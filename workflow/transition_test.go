package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func storyRules() []TransitionRule {
	return []TransitionRule{
		{Action: "Start Working", From: "New", To: "In Development"},
		{Action: "Complete Development", From: "In Development", To: "In Test"},
		{Action: "Accept", From: "In Test", To: "Done"},
		{Action: "Reopen", From: "Done", To: "In Development"},
		{Action: "Reject", From: "In Test", To: "In Development"},
		{Action: "Defer", From: "In Development", To: "New"},
	}
}

func TestBuildGraph(t *testing.T) {
	graph, err := BuildGraph(storyRules())
	require.NoError(t, err)
	require.Equal(t, 4, graph.States())
}

func TestBuildGraphRejectsEmptyRuleSet(t *testing.T) {
	_, err := BuildGraph(nil)
	require.Error(t, err)
}

func TestBuildGraphRejectsMalformedRule(t *testing.T) {
	_, err := BuildGraph([]TransitionRule{
		{Action: "Start Working", From: "New"},
	})
	require.Error(t, err)
}

func TestBuildGraphRejectsDuplicateAction(t *testing.T) {
	_, err := BuildGraph([]TransitionRule{
		{Action: "Start Working", From: "New", To: "In Development"},
		{Action: "Start Working", From: "In Development", To: "In Test"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Start Working")
}

func TestFindPath(t *testing.T) {
	rules := []TransitionRule{
		{Action: "Start", From: "New", To: "InDev"},
		{Action: "Complete", From: "InDev", To: "Done"},
		{Action: "Reopen", From: "Done", To: "InDev"},
	}
	graph, err := BuildGraph(rules)
	require.NoError(t, err)

	for scenario, fn := range map[string]func(t *testing.T, graph *TransitionGraph){
		"multi step path":             testMultiStepPath,
		"no reverse path":             testNoReversePath,
		"self transition is empty":    testSelfTransition,
		"self transition avoids loop": testSelfTransitionOnCycle,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, graph)
		})
	}
}

func testMultiStepPath(t *testing.T, graph *TransitionGraph) {
	path, found := graph.FindPath("New", "Done")
	require.True(t, found)
	require.Equal(t, []string{"Start", "Complete"}, path)
}

func testNoReversePath(t *testing.T, graph *TransitionGraph) {
	path, found := graph.FindPath("Done", "New")
	require.False(t, found)
	require.Nil(t, path)
}

func testSelfTransition(t *testing.T, graph *TransitionGraph) {
	for _, state := range []string{"New", "InDev", "Done"} {
		path, found := graph.FindPath(state, state)
		require.True(t, found)
		require.Empty(t, path)
	}
}

// InDev -> Done -> InDev is a cycle; a self transition must not take it.
func testSelfTransitionOnCycle(t *testing.T, graph *TransitionGraph) {
	path, found := graph.FindPath("InDev", "InDev")
	require.True(t, found)
	require.Empty(t, path)
}

func TestFindPathShortest(t *testing.T) {
	// Two routes from New to Done: the direct Fasttrack edge and the two
	// step route through InDev. The one-action route must win.
	rules := []TransitionRule{
		{Action: "Start", From: "New", To: "InDev"},
		{Action: "Complete", From: "InDev", To: "Done"},
		{Action: "Fasttrack", From: "New", To: "Done"},
	}
	graph, err := BuildGraph(rules)
	require.NoError(t, err)

	path, found := graph.FindPath("New", "Done")
	require.True(t, found)
	require.Equal(t, []string{"Fasttrack"}, path)
}

func TestFindPathTieBreakByDeclarationOrder(t *testing.T) {
	rules := []TransitionRule{
		{Action: "Start", From: "New", To: "InDev"},
		{Action: "Complete", From: "InDev", To: "Done"},
		{Action: "ForceComplete", From: "InDev", To: "Done"},
	}
	graph, err := BuildGraph(rules)
	require.NoError(t, err)

	path, found := graph.FindPath("InDev", "Done")
	require.True(t, found)
	require.Equal(t, []string{"Complete"}, path)
}

func TestFindPathTerminatesOnCyclicGraph(t *testing.T) {
	graph, err := BuildGraph(storyRules())
	require.NoError(t, err)

	// "Archived" never appears in the rule set; the cyclic graph must be
	// exhausted without looping.
	path, found := graph.FindPath("New", "Archived")
	require.False(t, found)
	require.Nil(t, path)
}

func TestFindPathFullWorkflow(t *testing.T) {
	graph, err := BuildGraph(storyRules())
	require.NoError(t, err)

	tests := []struct {
		name  string
		start string
		end   string
		want  []string
	}{
		{name: "new to done", start: "New", end: "Done", want: []string{"Start Working", "Complete Development", "Accept"}},
		{name: "reopen done story", start: "Done", end: "In Development", want: []string{"Reopen"}},
		{name: "done back to test", start: "Done", end: "In Test", want: []string{"Reopen", "Complete Development"}},
		{name: "defer to new", start: "In Development", end: "New", want: []string{"Defer"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path, found := graph.FindPath(tc.start, tc.end)
			require.True(t, found)
			require.Equal(t, tc.want, path)
		})
	}
}
