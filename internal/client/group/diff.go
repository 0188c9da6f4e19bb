// Package group implements the controlled update of a group's name and
// membership: compute the minimal diff, dry-run it on the server, re-encrypt
// the group's secrets for new members, then commit metadata first and one
// request per membership change.
package group

// Member is one membership row of a group.
type Member struct {
	UserID  string
	IsAdmin bool
}

// Group is the local view of a server-side group.
type Group struct {
	ID      string
	Name    string
	Members []Member
}

// MembershipChange is one membership row that differs between the existing
// and the updated group.
type MembershipChange struct {
	UserID    string
	IsAdmin   bool
	Operation string // create, update, delete
}

// UpdateDiff is the minimal delta of one group update. Unchanged members are
// omitted so a server dry-run only reports secrets needed for actually new
// members.
type UpdateDiff struct {
	GroupID           string
	Name              string
	NameChanged       bool
	MembershipChanges []MembershipChange
}

// Empty reports whether the diff describes no change at all.
func (d UpdateDiff) Empty() bool {
	return !d.NameChanged && len(d.MembershipChanges) == 0
}

// AddedUserIDs returns the users newly added by the diff, in diff order.
func (d UpdateDiff) AddedUserIDs() []string {
	var ids []string
	for _, mc := range d.MembershipChanges {
		if mc.Operation == "create" {
			ids = append(ids, mc.UserID)
		}
	}
	return ids
}

// Diff computes the minimal update delta between an existing group and its
// desired state. New members come first in the updated group's order, then
// admin-flag toggles, then removals in the existing group's order.
func Diff(existing, updated Group) UpdateDiff {
	d := UpdateDiff{GroupID: existing.ID}

	if updated.Name != "" && updated.Name != existing.Name {
		d.Name = updated.Name
		d.NameChanged = true
	}

	current := make(map[string]Member, len(existing.Members))
	for _, m := range existing.Members {
		current[m.UserID] = m
	}
	desired := make(map[string]Member, len(updated.Members))
	for _, m := range updated.Members {
		desired[m.UserID] = m
	}

	for _, m := range updated.Members {
		prev, ok := current[m.UserID]
		switch {
		case !ok:
			d.MembershipChanges = append(d.MembershipChanges, MembershipChange{
				UserID: m.UserID, IsAdmin: m.IsAdmin, Operation: "create",
			})
		case prev.IsAdmin != m.IsAdmin:
			d.MembershipChanges = append(d.MembershipChanges, MembershipChange{
				UserID: m.UserID, IsAdmin: m.IsAdmin, Operation: "update",
			})
		}
	}

	for _, m := range existing.Members {
		if _, ok := desired[m.UserID]; !ok {
			d.MembershipChanges = append(d.MembershipChanges, MembershipChange{
				UserID: m.UserID, Operation: "delete",
			})
		}
	}

	return d
}
