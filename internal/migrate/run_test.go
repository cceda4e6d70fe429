package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedded_SortedAndVersioned(t *testing.T) {
	all, err := embedded()
	require.NoError(t, err)
	require.NotEmpty(t, all)

	assert.Equal(t, "0001_init", all[0].Version)
	assert.Equal(t, "0001_init.sql", all[0].File)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Version, all[i].Version)
	}
}
