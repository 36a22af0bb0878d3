package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingExecutor struct {
	executed []string
	failOn   string
	err      error
}

func (r *recordingExecutor) ExecuteAction(ticketID string, action string) error {
	r.executed = append(r.executed, action)
	if action == r.failOn {
		return r.err
	}
	return nil
}

func TestApplyStateChange(t *testing.T) {
	executor := &recordingExecutor{}
	changer, err := NewStateChanger(storyRules(), executor)
	require.NoError(t, err)

	err = changer.ApplyStateChange("1234", "New", "Done")
	require.NoError(t, err)
	require.Equal(t, []string{"Start Working", "Complete Development", "Accept"}, executor.executed)
}

func TestApplyStateChangeNoop(t *testing.T) {
	executor := &recordingExecutor{}
	changer, err := NewStateChanger(storyRules(), executor)
	require.NoError(t, err)

	err = changer.ApplyStateChange("1234", "Done", "Done")
	require.NoError(t, err)
	require.Empty(t, executor.executed)
}

func TestApplyStateChangeUnreachable(t *testing.T) {
	executor := &recordingExecutor{}
	changer, err := NewStateChanger(storyRules(), executor)
	require.NoError(t, err)

	err = changer.ApplyStateChange("1234", "Done", "Archived")
	require.Error(t, err)

	var unreachable *UnreachableTransitionError
	require.True(t, errors.As(err, &unreachable))
	require.Equal(t, "1234", unreachable.TicketID)
	require.Equal(t, "Done", unreachable.From)
	require.Equal(t, "Archived", unreachable.To)
	require.Empty(t, executor.executed)
}

// A failure in the middle of a path must stop execution right there: the
// actions before the failed one ran, the ones after were never attempted.
func TestApplyStateChangeStopsOnFailure(t *testing.T) {
	remoteErr := errors.New("remote rejected action")
	executor := &recordingExecutor{failOn: "Complete Development", err: remoteErr}
	changer, err := NewStateChanger(storyRules(), executor)
	require.NoError(t, err)

	err = changer.ApplyStateChange("1234", "New", "Done")
	require.Error(t, err)
	require.Equal(t, []string{"Start Working", "Complete Development"}, executor.executed)

	var execErr *ActionExecutionError
	require.True(t, errors.As(err, &execErr))
	require.Equal(t, "Complete Development", execErr.Action)
	require.Equal(t, "1234", execErr.TicketID)
	require.True(t, errors.Is(err, remoteErr))
}

func TestNewStateChangerRejectsBadRules(t *testing.T) {
	_, err := NewStateChanger(nil, &recordingExecutor{})
	require.Error(t, err)
}
