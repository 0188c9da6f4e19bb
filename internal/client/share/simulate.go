package share

import (
	"context"
	"fmt"
	"sort"

	"github.com/teamvault/sharecore/internal/client/api"
	"github.com/teamvault/sharecore/internal/logging"
)

// Simulator asks the server to dry-run permission changes. Simulation
// precedes any cryptographic work: re-encryption is the expensive step, and
// encrypting eagerly for recipients the server may reject would waste CPU
// and expose plaintext to users whose access never materializes.
type Simulator struct {
	client api.Client
	log    logging.Logger
}

func NewSimulator(client api.Client, log logging.Logger) *Simulator {
	return &Simulator{client: client, log: log.With("component", "share-simulator")}
}

// Simulate dry-runs the changes against one ACO and returns the needed
// secrets: one entry per (resource of the ACO, user newly granted access),
// sorted by resource id then user id.
func (s *Simulator) Simulate(ctx context.Context, aco ACO, changes []Change) ([]NeededSecret, error) {
	res, err := s.client.SimulateShare(ctx, aco.Type, aco.ID, toAPIChanges(changes))
	if err != nil {
		return nil, fmt.Errorf("simulating changes for %s %s: %w", aco.Type, aco.ID, err)
	}

	var needed []NeededSecret
	for _, resource := range aco.Resources {
		for _, userID := range res.AddedUserIDs {
			needed = append(needed, NeededSecret{ResourceID: resource.ID, UserID: userID})
		}
	}
	sortNeeded(needed)

	s.log.Debug(ctx, "simulated share",
		"aco_type", aco.Type, "aco_id", aco.ID,
		"added", len(res.AddedUserIDs), "needed_secrets", len(needed))
	return needed, nil
}

// SimulateBatch aggregates Simulate across a batch, deduplicating
// (resource, user) pairs that several ACOs report.
func (s *Simulator) SimulateBatch(ctx context.Context, batch []ACOChanges) ([]NeededSecret, error) {
	seen := make(map[NeededSecret]struct{})
	var needed []NeededSecret

	for _, ac := range batch {
		part, err := s.Simulate(ctx, ac.ACO, ac.Changes)
		if err != nil {
			return nil, err
		}
		for _, ns := range part {
			if _, ok := seen[ns]; ok {
				continue
			}
			seen[ns] = struct{}{}
			needed = append(needed, ns)
		}
	}

	sortNeeded(needed)
	return needed, nil
}

func sortNeeded(needed []NeededSecret) {
	sort.Slice(needed, func(i, j int) bool {
		if needed[i].ResourceID != needed[j].ResourceID {
			return needed[i].ResourceID < needed[j].ResourceID
		}
		return needed[i].UserID < needed[j].UserID
	})
}

func toAPIChanges(changes []Change) []api.PermissionChange {
	out := make([]api.PermissionChange, 0, len(changes))
	for _, ch := range changes {
		out = append(out, api.PermissionChange{
			ACOType:       ch.ACOType,
			ACOForeignKey: ch.ACOForeignKey,
			AROForeignKey: ch.AROForeignKey,
			Operation:     ch.Operation,
		})
	}
	return out
}
