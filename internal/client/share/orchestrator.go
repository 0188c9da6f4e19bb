package share

import (
	"context"
	"fmt"
	"sort"

	"github.com/ProtonMail/gopenpgp/v2/crypto"

	"github.com/teamvault/sharecore/internal/client/api"
	"github.com/teamvault/sharecore/internal/client/keyring"
	"github.com/teamvault/sharecore/internal/client/pgp"
	"github.com/teamvault/sharecore/internal/client/progress"
	"github.com/teamvault/sharecore/internal/common"
	"github.com/teamvault/sharecore/internal/logging"
)

// Orchestrator turns a needed-secret list into wire-ready secret records:
// decrypt each affected resource once with the owner's key, re-encrypt per
// new recipient, then commit per ACO. All cryptographic work is sequential;
// the engine is not assumed reentrant, and sequential processing keeps the
// progress stream deterministic.
type Orchestrator struct {
	client  api.Client
	keyring *keyring.Cache
	crypto  *pgp.Service
	lock    Locker
	log     logging.Logger
}

// NewOrchestrator builds an orchestrator. A nil lock means NoLock.
func NewOrchestrator(client api.Client, kr *keyring.Cache, svc *pgp.Service, lock Locker, log logging.Logger) *Orchestrator {
	if lock == nil {
		lock = NoLock
	}
	return &Orchestrator{
		client:  client,
		keyring: kr,
		crypto:  svc,
		lock:    lock,
		log:     log.With("component", "share-orchestrator"),
	}
}

// Run encrypts the needed secrets and commits each ACO's permission changes
// together with its secret records. Commit failures are reported per ACO in
// the results; an earlier failure never discards the records computed for
// other ACOs. Cryptographic failures, by contrast, abort the whole batch:
// there is no meaningful partial result when the keyring or key material is
// inconsistent.
func (o *Orchestrator) Run(ctx context.Context, batch []ACOChanges, needed []NeededSecret, owner *crypto.Key, tracker *progress.Tracker) ([]ACOResult, error) {
	release, err := o.lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring operation lock: %w", err)
	}
	defer release()

	if tracker == nil {
		tracker = progress.NewTracker(nil)
	}

	acos := make([]ACO, 0, len(batch))
	for _, ac := range batch {
		acos = append(acos, ac.ACO)
	}

	records, err := o.EncryptNeededSecrets(ctx, acos, needed, owner, tracker)
	if err != nil {
		return nil, err
	}

	tracker.AddGoal(len(batch))

	results := make([]ACOResult, 0, len(batch))
	for _, ac := range batch {
		var secrets []SecretRecord
		for _, res := range ac.ACO.Resources {
			secrets = append(secrets, records[res.ID]...)
		}

		err := o.client.CommitShare(ctx, ac.ACO.Type, ac.ACO.ID, toAPIChanges(ac.Changes), toAPISecrets(secrets))
		if err != nil {
			o.log.Warn(ctx, "commit failed", "aco_type", ac.ACO.Type, "aco_id", ac.ACO.ID, "error", err)
		}
		results = append(results, ACOResult{ACOID: ac.ACO.ID, Secrets: secrets, Err: err})
		tracker.Step(fmt.Sprintf("Updating permissions for %s %s", ac.ACO.Type, ac.ACO.ID))

		if err := ctx.Err(); err != nil {
			return results, err
		}
	}

	return results, nil
}

// EncryptNeededSecrets performs the cryptographic half of a share: decrypt
// each resource with at least one needed secret exactly once, then encrypt
// the plaintext for every needed recipient, signed by the owner. Recipients
// of the same resource are processed in userID order so progress messages
// are reproducible. Returns the records grouped by resource id.
//
// The plaintexts live only in local memory for the duration of this call.
func (o *Orchestrator) EncryptNeededSecrets(ctx context.Context, acos []ACO, needed []NeededSecret, owner *crypto.Key, tracker *progress.Tracker) (map[string][]SecretRecord, error) {
	if _, err := pgp.AsUnlockedPrivateKey(pgp.PrivateKey{Key: owner}); err != nil {
		return nil, err
	}
	if tracker == nil {
		tracker = progress.NewTracker(nil)
	}

	usersByResource := neededUsersByResource(needed)

	// Resources to decrypt, in deterministic order, first ciphertext wins
	// when an id appears under several ACOs.
	var toDecrypt []Resource
	seen := make(map[string]struct{})
	for _, aco := range acos {
		for _, res := range aco.Resources {
			if _, ok := seen[res.ID]; ok {
				continue
			}
			seen[res.ID] = struct{}{}
			if len(usersByResource[res.ID]) > 0 {
				toDecrypt = append(toDecrypt, res)
			}
		}
	}
	sort.Slice(toDecrypt, func(i, j int) bool { return toDecrypt[i].ID < toDecrypt[j].ID })

	pairCount := 0
	for _, users := range usersByResource {
		pairCount += len(users)
	}
	tracker.AddGoal(len(toDecrypt) + pairCount)

	// Step 1: decrypt once per resource.
	plaintexts := make(map[string]string, len(toDecrypt))
	for _, res := range toDecrypt {
		plain, err := o.crypto.Decrypt(res.Ciphertext, pgp.PrivateKey{Key: owner}, nil)
		if err != nil {
			return nil, fmt.Errorf("decrypting secret of resource %s: %w", res.ID, err)
		}
		plaintexts[res.ID] = plain
		tracker.Step(fmt.Sprintf("Decrypting secret for resource %s", res.ID))

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	// Step 2: encrypt per needed recipient. One progress tick per
	// encryption; these are the CPU-bound, visibly slow steps.
	records := make(map[string][]SecretRecord, len(toDecrypt))
	synced := false
	for _, res := range toDecrypt {
		for _, userID := range usersByResource[res.ID] {
			pub, err := o.recipientKey(ctx, userID, &synced)
			if err != nil {
				return nil, err
			}

			ciphertext, err := o.crypto.Encrypt(plaintexts[res.ID],
				[]pgp.KeyMaterial{pgp.PublicKey{Key: pub}},
				[]pgp.KeyMaterial{pgp.PrivateKey{Key: owner}})
			if err != nil {
				return nil, fmt.Errorf("encrypting secret of resource %s for user %s: %w", res.ID, userID, err)
			}

			records[res.ID] = append(records[res.ID], SecretRecord{
				ResourceID: res.ID,
				UserID:     userID,
				Ciphertext: ciphertext,
			})
			tracker.Step(fmt.Sprintf("Encrypting secret for user %s", userID))

			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}

	return records, nil
}

// recipientKey resolves a recipient's public key, syncing the keyring at
// most once per batch when a key is not resident.
func (o *Orchestrator) recipientKey(ctx context.Context, userID string, synced *bool) (*crypto.Key, error) {
	pub, err := o.keyring.FindPublic(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pub == nil && !*synced {
		*synced = true
		if _, err := o.keyring.Sync(ctx); err != nil {
			return nil, err
		}
		pub, err = o.keyring.FindPublic(ctx, userID)
		if err != nil {
			return nil, err
		}
	}
	if pub == nil {
		return nil, fmt.Errorf("no public key for user %s: %w", userID, common.ErrNotFound)
	}
	return pub, nil
}

// neededUsersByResource groups and sorts the needed secrets into unique
// user-id lists per resource.
func neededUsersByResource(needed []NeededSecret) map[string][]string {
	byResource := make(map[string]map[string]struct{})
	for _, ns := range needed {
		if byResource[ns.ResourceID] == nil {
			byResource[ns.ResourceID] = make(map[string]struct{})
		}
		byResource[ns.ResourceID][ns.UserID] = struct{}{}
	}

	result := make(map[string][]string, len(byResource))
	for resourceID, users := range byResource {
		list := make([]string, 0, len(users))
		for userID := range users {
			list = append(list, userID)
		}
		sort.Strings(list)
		result[resourceID] = list
	}
	return result
}

func toAPISecrets(records []SecretRecord) []api.Secret {
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
