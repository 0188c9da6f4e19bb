package share

import (
	"fmt"

	"github.com/teamvault/sharecore/internal/common"
)

// AggregateChangesByACO groups the permission changes by the ACO they
// target, preserving the order of the input ACO list. ACOs with no
// associated changes are dropped; changes that target none of the given
// ACOs are dropped too.
func AggregateChangesByACO(acos []ACO, changes []Change) ([]ACOChanges, error) {
	if len(acos) == 0 {
		return nil, fmt.Errorf("aco list is empty: %w", common.ErrInvalidArgument)
	}
	if len(changes) == 0 {
		return nil, fmt.Errorf("change list is empty: %w", common.ErrInvalidArgument)
	}

	type acoKey struct {
		acoType string
		acoID   string
	}

	byKey := make(map[acoKey][]Change)
	for _, ch := range changes {
		key := acoKey{acoType: ch.ACOType, acoID: ch.ACOForeignKey}
		byKey[key] = append(byKey[key], ch)
	}

	var result []ACOChanges
	for _, aco := range acos {
		matched, ok := byKey[acoKey{acoType: aco.Type, acoID: aco.ID}]
		if !ok {
			continue
		}
		result = append(result, ACOChanges{ACO: aco, Changes: matched})
	}
	return result, nil
}
