package share

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamvault/sharecore/internal/common"
)

func TestAggregateChangesByACO(t *testing.T) {
	acos := []ACO{
		{Type: ACOTypeFolder, ID: "f1"},
		{Type: ACOTypeResource, ID: "r1"},
		{Type: ACOTypeResource, ID: "r2"},
	}
	changes := []Change{
		{ACOType: ACOTypeResource, ACOForeignKey: "r2", AROForeignKey: "u1", Operation: "create"},
		{ACOType: ACOTypeFolder, ACOForeignKey: "f1", AROForeignKey: "u1", Operation: "create"},
		{ACOType: ACOTypeFolder, ACOForeignKey: "f1", AROForeignKey: "u2", Operation: "delete"},
	}

	result, err := AggregateChangesByACO(acos, changes)
	require.NoError(t, err)

	// Input ACO order is preserved, r1 has no changes and is dropped.
	require.Len(t, result, 2)
	assert.Equal(t, "f1", result[0].ACO.ID)
	assert.Len(t, result[0].Changes, 2)
	assert.Equal(t, "r2", result[1].ACO.ID)
	assert.Len(t, result[1].Changes, 1)
}

func TestAggregateChangesByACO_TypeDisambiguatesSameID(t *testing.T) {
	acos := []ACO{
		{Type: ACOTypeResource, ID: "x"},
		{Type: ACOTypeFolder, ID: "x"},
	}
	changes := []Change{
		{ACOType: ACOTypeFolder, ACOForeignKey: "x", AROForeignKey: "u1", Operation: "create"},
	}

	result, err := AggregateChangesByACO(acos, changes)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, ACOTypeFolder, result[0].ACO.Type)
}

func TestAggregateChangesByACO_DropsUnmatchedChanges(t *testing.T) {
	acos := []ACO{{Type: ACOTypeResource, ID: "r1"}}
	changes := []Change{
		{ACOType: ACOTypeResource, ACOForeignKey: "r1", AROForeignKey: "u1", Operation: "create"},
		{ACOType: ACOTypeResource, ACOForeignKey: "unknown", AROForeignKey: "u1", Operation: "create"},
	}

	result, err := AggregateChangesByACO(acos, changes)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Len(t, result[0].Changes, 1)
}

func TestAggregateChangesByACO_EmptyInput(t *testing.T) {
	_, err := AggregateChangesByACO(nil, []Change{{ACOType: ACOTypeResource}})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	_, err = AggregateChangesByACO([]ACO{{Type: ACOTypeResource, ID: "r1"}}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}
