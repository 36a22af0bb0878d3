package workflow

import "fmt"

// TransitionRule is one directed edge of a tracker workflow: firing Action
// moves a ticket from state From to state To. Rules are ordered; when two
// rules could produce equally short paths the earlier declared one wins.
type TransitionRule struct {
	Action string `json:"action" mapstructure:"action"`
	From   string `json:"from" mapstructure:"from"`
	To     string `json:"to" mapstructure:"to"`
}

type edge struct {
	to     string
	action string
}

// TransitionGraph is the adjacency view of a rule set, keyed by source
// state. It is built once per client and read-only afterwards.
type TransitionGraph struct {
	adjacency map[string][]edge
}

// BuildGraph converts the ordered rule set into an adjacency list. Adjacency
// entries keep the declaration order of the rules, which fixes the BFS
// tie-break in FindPath. Malformed rules are rejected: empty fields and
// duplicate action names.
func BuildGraph(rules []TransitionRule) (*TransitionGraph, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("transition rule set is empty")
	}
	seen := make(map[string]struct{}, len(rules))
	adjacency := make(map[string][]edge)
	for _, rule := range rules {
		if rule.Action == "" || rule.From == "" || rule.To == "" {
			return nil, fmt.Errorf("invalid transition rule %+v: action, from and to are required", rule)
		}
		if _, ok := seen[rule.Action]; ok {
			return nil, fmt.Errorf("duplicate transition action '%s'", rule.Action)
		}
		seen[rule.Action] = struct{}{}
		adjacency[rule.From] = append(adjacency[rule.From], edge{to: rule.To, action: rule.Action})
	}
	return &TransitionGraph{adjacency: adjacency}, nil
}

type searchNode struct {
	state string
	path  []string
}

// FindPath returns the shortest sequence of actions moving a ticket from
// start to end, breadth-first over the graph. The empty path is returned for
// start == end. The second result is false when end is unreachable; an
// unreachable target is not an error here, callers decide how to surface it.
func (g *TransitionGraph) FindPath(start, end string) ([]string, bool) {
	if start == end {
		return []string{}, true
	}
	queue := []searchNode{{state: start, path: nil}}
	visited := map[string]struct{}{start: {}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, e := range g.adjacency[current.state] {
			path := make([]string, len(current.path), len(current.path)+1)
			copy(path, current.path)
			path = append(path, e.action)
			if e.to == end {
				return path, true
			}
			if _, ok := visited[e.to]; ok {
				continue
			}
			visited[e.to] = struct{}{}
			queue = append(queue, searchNode{state: e.to, path: path})
		}
	}
	return nil, false
}

// States returns the number of distinct states appearing as edge sources.
func (g *TransitionGraph) States() int {
	return len(g.adjacency)
}
