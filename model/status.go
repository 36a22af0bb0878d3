package model

import "fmt"

type TrackerType string

const TRACKER_TYPE_GITHUB TrackerType = "github"
const TRACKER_TYPE_GITLAB TrackerType = "gitlab"
const TRACKER_TYPE_JIRA TrackerType = "jira"
const TRACKER_TYPE_RTC TrackerType = "rtc"

// NormalizedStatus is the tracker independent status a ticket is compared
// and synced on.
type NormalizedStatus string

const STATUS_OPEN NormalizedStatus = "Open"
const STATUS_IN_PROGRESS NormalizedStatus = "In Progress"
const STATUS_READY_FOR_ACCEPTANCE NormalizedStatus = "Ready for Acceptance"
const STATUS_CLOSED NormalizedStatus = "Closed"

type statusPair struct {
	native     string
	normalized NormalizedStatus
}

// Per tracker native<->normalized status table. Pairs are ordered so that
// the reverse lookup is deterministic: the first native status mapping to a
// normalized status wins.
var statusMapping = map[TrackerType][]statusPair{
	TRACKER_TYPE_GITHUB: {
		{"open", STATUS_OPEN},
		{"closed", STATUS_CLOSED},
	},
	TRACKER_TYPE_GITLAB: {
		{"opened", STATUS_OPEN},
		{"closed", STATUS_CLOSED},
	},
	TRACKER_TYPE_JIRA: {
		{"Open", STATUS_OPEN},
		{"In Progress", STATUS_IN_PROGRESS},
		{"Resolved", STATUS_CLOSED},
		{"Closed", STATUS_CLOSED},
	},
	TRACKER_TYPE_RTC: {
		{"New", STATUS_OPEN},
		{"In Development", STATUS_IN_PROGRESS},
		{"Ready for Acceptance", STATUS_READY_FOR_ACCEPTANCE},
		{"Done", STATUS_CLOSED},
	},
}

// NormalizeStatus maps a tracker native status to the normalized one.
func NormalizeStatus(trackerType TrackerType, nativeStatus string) (NormalizedStatus, error) {
	pairs, ok := statusMapping[trackerType]
	if !ok {
		return "", fmt.Errorf("unsupported tracker type '%s'", trackerType)
	}
	for _, pair := range pairs {
		if pair.native == nativeStatus {
			return pair.normalized, nil
		}
	}
	return "", fmt.Errorf("unsupported status '%s' for %s issue", nativeStatus, trackerType)
}

// NativeStatus maps a normalized status back to the tracker native one.
func NativeStatus(trackerType TrackerType, status NormalizedStatus) (string, error) {
	pairs, ok := statusMapping[trackerType]
	if !ok {
		return "", fmt.Errorf("unsupported tracker type '%s'", trackerType)
	}
	for _, pair := range pairs {
		if pair.normalized == status {
			return pair.native, nil
		}
	}
	return "", fmt.Errorf("unsupported status '%s' for %s issue", status, trackerType)
}
