package cmd

import (
	"testing"

	"github.com/harvestsmart/harvestsmart/pkg/store"
	"github.com/stretchr/testify/assert"
)

func TestCheckBackend(t *testing.T) {
	assert.NoError(t, checkBackend(""))
	assert.NoError(t, checkBackend(store.BackendSQLite))

	err := checkBackend(store.BackendMemory)
	assert.ErrorContains(t, err, "does not persist between commands")
}
