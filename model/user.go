package model

import "strings"

// User maps one person to their account ids on each tracker.
type User struct {
	Name     string            `json:"name" mapstructure:"name"`
	Accounts map[string]string `json:"accounts" mapstructure:"accounts"`
}

// AccountID returns the user's account id on the given tracker.
func (u *User) AccountID(trackerType TrackerType) string {
	return u.Accounts[string(trackerType)]
}

// UserDirectory resolves tracker specific account ids to users so that
// assignees can be carried across trackers.
type UserDirectory struct {
	users []User
}

func NewUserDirectory(users []User) *UserDirectory {
	return &UserDirectory{users: users}
}

// GetUser finds the user owning the given account id on a tracker. Account
// ids are matched case-insensitively. Returns nil when unknown.
func (d *UserDirectory) GetUser(accountID string, trackerType TrackerType) *User {
	for i := range d.users {
		id, ok := d.users[i].Accounts[string(trackerType)]
		if ok && strings.EqualFold(id, accountID) {
			return &d.users[i]
		}
	}
	return nil
}
