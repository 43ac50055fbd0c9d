package fingerprint

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOUIDatabase(t *testing.T, fallback VendorRepository) *OUIDatabase {
	t.Helper()
	db, err := NewOUIDatabase(filepath.Join(t.TempDir(), "oui.db"), 16, fallback)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOUIDatabase_InsertAndLookup(t *testing.T) {
	db := newTestOUIDatabase(t, nil)
	ctx := context.Background()

	require.NoError(t, db.BulkInsertOUIs(ctx, []OUIEntry{
		{Prefix: "00-00-00", Vendor: "Test Vendor 1 Inc.", VendorShort: "TestVendor1", LastUpdated: time.Now()},
		{Prefix: "111111", Vendor: "Test Vendor 2", LastUpdated: time.Now()},
	}))

	v, err := db.LookupVendor(ctx, mustPrefix(t, "00:00:00:11:22:33"))
	require.NoError(t, err)
	assert.Equal(t, "TestVendor1", v)

	v, err = db.LookupVendor(ctx, mustPrefix(t, "11:11:11"))
	require.NoError(t, err)
	assert.Equal(t, "Test Vendor 2", v)

	_, err = db.LookupVendor(ctx, mustPrefix(t, "22:22:22"))
	assert.ErrorIs(t, err, ErrVendorNotFound)

	stats, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalEntries)
}

func TestOUIDatabase_Fallback(t *testing.T) {
	db := newTestOUIDatabase(t, NewStaticVendorRepository(map[string]string{"B8:27:EB": "Raspberry Pi Foundation"}))

	v, err := db.LookupVendor(context.Background(), mustPrefix(t, "b8:27:eb:01:02:03"))
	require.NoError(t, err)
	assert.Equal(t, "Raspberry Pi Foundation", v)
}

func TestOUIDatabase_Closed(t *testing.T) {
	db := newTestOUIDatabase(t, nil)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err := db.LookupVendor(context.Background(), mustPrefix(t, "00:00:00"))
	assert.ErrorIs(t, err, ErrRepositoryClosed)
	assert.ErrorIs(t, db.InsertOUI(context.Background(), OUIEntry{Prefix: "00:00:00", Vendor: "x"}), ErrRepositoryClosed)
}

func mustPrefix(t *testing.T, s string) Prefix {
	t.Helper()
	p, err := ParsePrefix(s)
	require.NoError(t, err)
	return p
}
