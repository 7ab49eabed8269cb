package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnitStatus(t *testing.T) {
	for _, s := range allUnitStatuses {
		got, err := ParseUnitStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseUnitStatus("ALLOCATED")
	require.Error(t, err)
	_, err = ParseUnitStatus("")
	require.Error(t, err)
}
