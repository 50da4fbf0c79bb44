package disk_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/storage/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockData(num uint64) database.BlockData {
	return database.BlockData{
		Header: database.BlockHeader{Number: num, TimeStamp: 1_700_000_000 + num},
		Trans:  []database.Tx{database.NewTx("Alice", "Bob", int64(num))},
		Hash:   "0x01",
	}
}

func TestDisk_WriteAndRead(t *testing.T) {
	dir := t.TempDir()

	d, err := disk.New(dir)
	require.NoError(t, err)
	defer d.Close()

	for i := range uint64(3) {
		require.NoError(t, d.Write(blockData(i)))
	}

	assert.FileExists(t, filepath.Join(dir, "0.json"))
	assert.FileExists(t, filepath.Join(dir, "2.json"))

	got, err := d.GetBlock(2)
	require.NoError(t, err)
	assert.Equal(t, blockData(2), got)

	_, err = d.GetBlock(3)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestDisk_NoOverwrite(t *testing.T) {
	d, err := disk.New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, d.Write(blockData(0)))
	assert.Error(t, d.Write(blockData(0)))
}

func TestDisk_ForEach(t *testing.T) {
	d, err := disk.New(t.TempDir())
	require.NoError(t, err)

	for i := range uint64(5) {
		require.NoError(t, d.Write(blockData(i)))
	}

	var nums []uint64
	iter := d.ForEach()
	for bd, err := iter.Next(); !iter.Done(); bd, err = iter.Next() {
		require.NoError(t, err)
		nums = append(nums, bd.Header.Number)
	}

	assert.Equal(t, []uint64{0, 1, 2, 3, 4}, nums)
}

func TestDisk_Corrupt(t *testing.T) {
	dir := t.TempDir()

	d, err := disk.New(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "0.json"), []byte("{not json"), 0600))

	_, err = d.GetBlock(0)
	require.Error(t, err)
	assert.NotErrorIs(t, err, database.ErrNotFound)
}
