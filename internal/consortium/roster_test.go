package consortium

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	r := Default()
	assert.Equal(t, 34, r.Len())

	ids := r.IDs()
	assert.True(t, sort.SliceIsSorted(ids, func(i, j int) bool { return ids[i] < ids[j] }))
	assert.True(t, r.Contains(156295))
	assert.Equal(t, "Berea College", r.Name(156295))
	assert.Equal(t, "", r.Name(1))
}

func TestNewRoster_RejectsDuplicates(t *testing.T) {
	_, err := NewRoster([]Institution{{UnitID: 1}, {UnitID: 2}, {UnitID: 1}})
	assert.ErrorIs(t, err, ErrDuplicateMember)
}

func TestFromConfig(t *testing.T) {
	r, err := FromConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, Default().IDs(), r.IDs())

	r, err = FromConfig([]Institution{{UnitID: 3, Name: "C"}, {UnitID: 1, Name: "A"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, r.IDs())
}

func TestWithout(t *testing.T) {
	r := Default().Without(132879)
	assert.Equal(t, 33, r.Len())
	assert.False(t, r.Contains(132879))
	assert.True(t, Default().Contains(132879), "Without must not modify the source roster")
}
