package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		tracker TrackerType
		native  string
		want    NormalizedStatus
	}{
		{TRACKER_TYPE_GITHUB, "open", STATUS_OPEN},
		{TRACKER_TYPE_GITHUB, "closed", STATUS_CLOSED},
		{TRACKER_TYPE_GITLAB, "opened", STATUS_OPEN},
		{TRACKER_TYPE_JIRA, "Resolved", STATUS_CLOSED},
		{TRACKER_TYPE_JIRA, "In Progress", STATUS_IN_PROGRESS},
		{TRACKER_TYPE_RTC, "New", STATUS_OPEN},
		{TRACKER_TYPE_RTC, "Done", STATUS_CLOSED},
	}
	for _, tc := range tests {
		got, err := NormalizeStatus(tc.tracker, tc.native)
		require.NoError(t, err)
		require.Equal(t, tc.want, got)
	}
}

func TestNormalizeStatusUnknown(t *testing.T) {
	_, err := NormalizeStatus(TrackerType("bugzilla"), "open")
	require.Error(t, err)

	_, err = NormalizeStatus(TRACKER_TYPE_GITHUB, "half-open")
	require.Error(t, err)
}

func TestNativeStatus(t *testing.T) {
	got, err := NativeStatus(TRACKER_TYPE_RTC, STATUS_IN_PROGRESS)
	require.NoError(t, err)
	require.Equal(t, "In Development", got)

	// Both "Resolved" and "Closed" normalize to Closed on jira; the first
	// declared native status must win deterministically.
	got, err = NativeStatus(TRACKER_TYPE_JIRA, STATUS_CLOSED)
	require.NoError(t, err)
	require.Equal(t, "Resolved", got)
}

func TestNativeStatusUnknown(t *testing.T) {
	_, err := NativeStatus(TRACKER_TYPE_GITHUB, STATUS_READY_FOR_ACCEPTANCE)
	require.Error(t, err)
}

func TestTicketIsSynced(t *testing.T) {
	ticket := &Ticket{Title: "[ 1234 ] Title of already synced ticket"}
	require.True(t, ticket.IsSynced())
	require.Equal(t, "1234", ticket.DestinationID)

	ticket = &Ticket{Title: "[1234] no inner spaces"}
	require.True(t, ticket.IsSynced())
	require.Equal(t, "1234", ticket.DestinationID)

	ticket = &Ticket{Title: "Unsynced ticket"}
	require.False(t, ticket.IsSynced())
	require.Empty(t, ticket.DestinationID)
}

func TestUserDirectory(t *testing.T) {
	directory := NewUserDirectory([]User{
		{
			Name: "Tran Duy Ngoan",
			Accounts: map[string]string{
				"github": "ngoan1608",
				"jira":   "ntd1hc",
				"rtc":    "ntd1hc",
			},
		},
		{
			Name: "Queckenstedt Holger",
			Accounts: map[string]string{
				"github": "HolQue",
				"gitlab": "qth2hi",
			},
		},
	})

	user := directory.GetUser("HolQue", TRACKER_TYPE_GITHUB)
	require.NotNil(t, user)
	require.Equal(t, "Queckenstedt Holger", user.Name)
	require.Equal(t, "qth2hi", user.AccountID(TRACKER_TYPE_GITLAB))

	// lookup is case-insensitive
	user = directory.GetUser("holque", TRACKER_TYPE_GITHUB)
	require.NotNil(t, user)

	require.Nil(t, directory.GetUser("nobody", TRACKER_TYPE_GITHUB))
	require.Nil(t, directory.GetUser("HolQue", TRACKER_TYPE_JIRA))
}
