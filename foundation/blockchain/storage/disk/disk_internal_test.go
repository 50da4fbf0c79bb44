package disk

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisk_FailedWriteLeavesNothing(t *testing.T) {
	dir := t.TempDir()

	d, err := New(dir)
	require.NoError(t, err)

	bd := database.BlockData{
		Header: database.BlockHeader{Number: 0, TimeStamp: 1_700_000_000},
		Hash:   "0x01",
	}

	errSync := errors.New("disk full")
	d.sync = func(f *os.File) error { return errSync }

	require.ErrorIs(t, d.Write(bd), errSync)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = d.GetBlock(0)
	assert.ErrorIs(t, err, database.ErrNotFound)

	// The same block can be written once the disk recovers.
	d.sync = (*os.File).Sync
	require.NoError(t, d.Write(bd))

	got, err := d.GetBlock(0)
	require.NoError(t, err)
	assert.Equal(t, bd.Hash, got.Hash)
}

func TestDisk_StaleStagingRemoved(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, ".block-123.tmp")
	require.NoError(t, os.WriteFile(stale, []byte(`{"block":`), 0600))

	d, err := New(dir)
	require.NoError(t, err)

	assert.NoFileExists(t, stale)

	iter := d.ForEach()
	_, err = iter.Next()
	assert.True(t, iter.Done())
	assert.ErrorIs(t, err, ErrEndOfChain)
}
