package workflow

import (
	"fmt"

	"github.com/synctools/tracksync/logger"
	"go.uber.org/zap"
)

// ActionExecutor performs a single named workflow action against a ticket on
// the remote tracker. Implementations resolve the action name to the
// tracker-specific identifier and fire the remote mutation; each successful
// call is a real, irreversible state change.
type ActionExecutor interface {
	ExecuteAction(ticketID string, action string) error
}

// UnreachableTransitionError reports that no action path connects the two
// states in the configured graph. Retrying with the same inputs would fail
// deterministically; only a configuration change or a different target helps.
type UnreachableTransitionError struct {
	TicketID string
	From     string
	To       string
}

func (e *UnreachableTransitionError) Error() string {
	return fmt.Sprintf("no action path from state '%s' to state '%s' for ticket %s", e.From, e.To, e.TicketID)
}

// ActionExecutionError reports that one action of a resolved path failed on
// the remote side. Actions after the failed one were not attempted; the
// ticket stays in whatever state the last successful action produced.
type ActionExecutionError struct {
	TicketID string
	Action   string
	Err      error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("failed to execute action '%s' on ticket %s: %v", e.Action, e.TicketID, e.Err)
}

func (e *ActionExecutionError) Unwrap() error {
	return e.Err
}

// StateChanger resolves a requested state change into the shortest action
// path and drives the executor through it, strictly in order. It holds the
// graph immutably for its lifetime; concurrent calls for different tickets
// are safe, calls for the same ticket must be serialized by the caller.
type StateChanger struct {
	graph    *TransitionGraph
	executor ActionExecutor
}

func NewStateChanger(rules []TransitionRule, executor ActionExecutor) (*StateChanger, error) {
	graph, err := BuildGraph(rules)
	if err != nil {
		return nil, err
	}
	return &StateChanger{
		graph:    graph,
		executor: executor,
	}, nil
}

// ApplyStateChange moves the ticket from currentState to targetState. It
// stops at the first failing action without rollback; callers retrying must
// re-resolve from the ticket's actual state, not replay the old path.
func (s *StateChanger) ApplyStateChange(ticketID string, currentState string, targetState string) error {
	path, found := s.graph.FindPath(currentState, targetState)
	if !found {
		return &UnreachableTransitionError{
			TicketID: ticketID,
			From:     currentState,
			To:       targetState,
		}
	}
	for _, action := range path {
		logger.Debug("executing workflow action",
			zap.String("ticket", ticketID),
			zap.String("action", action))
		if err := s.executor.ExecuteAction(ticketID, action); err != nil {
			return &ActionExecutionError{
				TicketID: ticketID,
				Action:   action,
				Err:      err,
			}
		}
	}
	return nil
}
