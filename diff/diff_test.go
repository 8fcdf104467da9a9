package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	t.Parallel()

	score, diffs := Names("Album Y", "Artist X", "Album Y", "Artist X")
	assert.Equal(t, 100.0, score)
	require.Len(t, diffs, 2)
	assert.True(t, diffs[0].Equal())
	assert.True(t, diffs[1].Equal())

	score, diffs = Names("Album Y", "Artist X", "Album Y (Deluxe)", "Artist X")
	assert.Less(t, score, 100.0)
	assert.Greater(t, score, 0.0)
	assert.False(t, diffs[0].Equal())
	assert.Equal(t, "album", diffs[0].Field)
	assert.Equal(t, "Album Y (Deluxe)", diffs[0].After)
	assert.True(t, diffs[1].Equal())
}

func TestNamesEmpty(t *testing.T) {
	t.Parallel()

	score, diffs := Names("Album", "Artist", "", "")
	assert.Equal(t, 0.0, score)
	assert.False(t, diffs[0].Equal())
}
