// Package api defines the server-facing contract of the sharing core and a
// JSON-over-HTTP implementation. Retry, backoff and authentication are the
// HTTP collaborator's business: the implementation takes a caller-supplied
// *http.Client and issues each request exactly once.
package api

import (
	"context"
	"time"
)

// GPGKey is one row from the remote key directory.
type GPGKey struct {
	UserID  string `json:"user_id"`
	Armored string `json:"key"`
}

// Permission change operations.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// PermissionChange is one permission change operation sent to the share
// endpoints. AROForeignKey is the user or group the permission applies to.
type PermissionChange struct {
	ACOType       string `json:"aco"`
	ACOForeignKey string `json:"aco_foreign_key"`
	AROForeignKey string `json:"aro_foreign_key"`
	Operation     string `json:"operation"`
}

// Secret is a wire-ready encrypted secret record.
type Secret struct {
	ResourceID string `json:"resource_id"`
	UserID     string `json:"user_id"`
	Data       string `json:"data"`
}

// SimulationResult is the outcome of a share dry-run: the users who would
// gain or lose access if the changes were committed.
type SimulationResult struct {
	AddedUserIDs   []string
	RemovedUserIDs []string
}

// Client is the transport consumed by the sharing core.
type Client interface {
	// GPGKeysModifiedAfter fetches directory keys modified after since and
	// the server timestamp to use as the next sync watermark.
	GPGKeysModifiedAfter(ctx context.Context, since time.Time) ([]GPGKey, time.Time, error)

	// SimulateShare dry-runs the permission changes against one ACO without
	// mutating server state.
	SimulateShare(ctx context.Context, acoType, acoID string, changes []PermissionChange) (*SimulationResult, error)

	// CommitShare applies the permission changes to one ACO together with
	// the re-encrypted secrets they require.
	CommitShare(ctx context.Context, acoType, acoID string, changes []PermissionChange, secrets []Secret) error

	// UpdateGroupName updates a group's metadata.
	UpdateGroupName(ctx context.Context, groupID, name string) error

	// UpdateGroupMember adds or updates one membership row. Secrets carry
	// the re-encrypted copies a newly added member needs.
	UpdateGroupMember(ctx context.Context, groupID, userID string, isAdmin bool, secrets []Secret) error

	// DeleteGroupMember removes one membership row.
	DeleteGroupMember(ctx context.Context, groupID, userID string) error
}
