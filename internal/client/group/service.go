package group

import (
	"context"
	"fmt"

	"github.com/teamvault/sharecore/internal/client/api"
	"github.com/teamvault/sharecore/internal/client/keyring"
	"github.com/teamvault/sharecore/internal/client/passphrase"
	"github.com/teamvault/sharecore/internal/client/progress"
	"github.com/teamvault/sharecore/internal/client/share"
	"github.com/teamvault/sharecore/internal/logging"
)

// Service drives a group update through its fixed step order: feasibility
// dry-run, keyring sync and re-encryption when new members need secrets,
// then commit. Each step is an exported method; Update chains them.
type Service struct {
	client  api.Client
	sim     *share.Simulator
	orch    *share.Orchestrator
	keyring *keyring.Cache
	pass    *passphrase.Controller
	store   Store
	lock    share.Locker
	log     logging.Logger
}

// NewService builds a group update service. A nil lock means share.NoLock.
func NewService(client api.Client, sim *share.Simulator, orch *share.Orchestrator,
	kr *keyring.Cache, pass *passphrase.Controller, store Store,
	lock share.Locker, log logging.Logger) *Service {
	if lock == nil {
		lock = share.NoLock
	}
	return &Service{
		client:  client,
		sim:     sim,
		orch:    orch,
		keyring: kr,
		pass:    pass,
		store:   store,
		lock:    lock,
		log:     log.With("component", "group"),
	}
}

// SimulateUpdate dry-runs the diff's membership changes against the group's
// resources and returns the needed secrets. A diff without membership
// changes needs no server round trip and yields no needed secrets.
func (s *Service) SimulateUpdate(ctx context.Context, diff UpdateDiff, resources []share.Resource) ([]share.NeededSecret, error) {
	if len(diff.MembershipChanges) == 0 {
		return nil, nil
	}

	aco := share.ACO{Type: share.ACOTypeGroup, ID: diff.GroupID, Resources: resources}
	return s.sim.Simulate(ctx, aco, toShareChanges(diff))
}

// EncryptNeededSecrets synchronizes the keyring and re-encrypts the group's
// secrets for the users in needed, keyed by user id so Commit can attach
// each new member's copies to their membership request. The passphrase
// controller supplies the unlocked device key for the duration of the call.
func (s *Service) EncryptNeededSecrets(ctx context.Context, diff UpdateDiff, resources []share.Resource, needed []share.NeededSecret, tracker *progress.Tracker) (map[string][]share.SecretRecord, error) {
	if len(needed) == 0 {
		return nil, nil
	}
	if tracker == nil {
		tracker = progress.NewTracker(nil)
	}

	tracker.Announce("Synchronizing keyring")
	if _, err := s.keyring.Sync(ctx); err != nil {
		return nil, fmt.Errorf("synchronizing keyring: %w", err)
	}

	owner, err := s.pass.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	acos := []share.ACO{{Type: share.ACOTypeGroup, ID: diff.GroupID, Resources: resources}}
	records, err := s.orch.EncryptNeededSecrets(ctx, acos, needed, owner, tracker)
	if err != nil {
		return nil, err
	}

	byUser := make(map[string][]share.SecretRecord)
	for _, recs := range records {
		for _, rec := range recs {
			byUser[rec.UserID] = append(byUser[rec.UserID], rec)
		}
	}
	return byUser, nil
}

// Commit applies the diff in its fixed order: the metadata update first when
// the name changed, then one request per membership change. The local store
// is updated after each successful operation, so a failure partway through
// leaves a well-defined partially-updated state; there is no rollback. The
// first failure stops the loop and is returned with the count of operations
// already applied.
func (s *Service) Commit(ctx context.Context, existing Group, diff UpdateDiff, secrets map[string][]share.SecretRecord, tracker *progress.Tracker) (int, error) {
	if tracker == nil {
		tracker = progress.NewTracker(nil)
	}

	ops := len(diff.MembershipChanges)
	if diff.NameChanged {
		ops++
	}
	tracker.AddGoal(ops)

	working := cloneGroup(existing)
	applied := 0

	if diff.NameChanged {
		if err := s.client.UpdateGroupName(ctx, diff.GroupID, diff.Name); err != nil {
			return applied, fmt.Errorf("updating group name: %w", err)
		}
		working.Name = diff.Name
		if err := s.store.Put(ctx, &working); err != nil {
			return applied, err
		}
		applied++
		tracker.Step("Updating group name")
	}

	for _, mc := range diff.MembershipChanges {
		var err error
		switch mc.Operation {
		case "delete":
			err = s.client.DeleteGroupMember(ctx, diff.GroupID, mc.UserID)
		case "create":
			err = s.client.UpdateGroupMember(ctx, diff.GroupID, mc.UserID, mc.IsAdmin, toAPISecrets(secrets[mc.UserID]))
		default:
			err = s.client.UpdateGroupMember(ctx, diff.GroupID, mc.UserID, mc.IsAdmin, nil)
		}
		if err != nil {
			return applied, fmt.Errorf("applying membership %s for user %s: %w", mc.Operation, mc.UserID, err)
		}

		applyMember(&working, mc)
		if err := s.store.Put(ctx, &working); err != nil {
			return applied, err
		}
		applied++
		tracker.Step(fmt.Sprintf("Updating membership of user %s", mc.UserID))
	}

	s.log.Info(ctx, "group update committed", "group_id", diff.GroupID, "operations", applied)
	return applied, nil
}

// Update runs the whole flow for one group: diff, dry-run, re-encryption for
// new members when needed, then commit. Returns the number of server
// operations applied. A no-op diff returns (0, nil) without any server
// contact.
func (s *Service) Update(ctx context.Context, existing, updated Group, resources []share.Resource, tracker *progress.Tracker) (int, error) {
	release, err := s.lock.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquiring operation lock: %w", err)
	}
	defer release()

	if tracker == nil {
		tracker = progress.NewTracker(nil)
	}

	diff := Diff(existing, updated)
	if diff.Empty() {
		return 0, nil
	}

	needed, err := s.SimulateUpdate(ctx, diff, resources)
	if err != nil {
		return 0, err
	}

	secrets, err := s.EncryptNeededSecrets(ctx, diff, resources, needed, tracker)
	if err != nil {
		return 0, err
	}

	return s.Commit(ctx, existing, diff, secrets, tracker)
}

func applyMember(g *Group, mc MembershipChange) {
	switch mc.Operation {
	case "create":
		g.Members = append(g.Members, Member{UserID: mc.UserID, IsAdmin: mc.IsAdmin})
	case "update":
		for i := range g.Members {
			if g.Members[i].UserID == mc.UserID {
				g.Members[i].IsAdmin = mc.IsAdmin
				return
			}
		}
	case "delete":
		for i := range g.Members {
			if g.Members[i].UserID == mc.UserID {
				g.Members = append(g.Members[:i], g.Members[i+1:]...)
				return
			}
		}
	}
}

func toShareChanges(diff UpdateDiff) []share.Change {
	out := make([]share.Change, 0, len(diff.MembershipChanges))
	for _, mc := range diff.MembershipChanges {
		out = append(out, share.Change{
			ACOType:       share.ACOTypeGroup,
			ACOForeignKey: diff.GroupID,
			AROForeignKey: mc.UserID,
			Operation:     mc.Operation,
		})
	}
	return out
}

func toAPISecrets(records []share.SecretRecord) []api.Secret {
	if len(records) == 0 {
		return nil
	}
	out := make([]api.Secret, 0, len(records))
	for _, rec := range records {
		out = append(out, api.Secret{
			ResourceID: rec.ResourceID,
			UserID:     rec.UserID,
			Data:       rec.Ciphertext,
		})
	}
	return out
}
