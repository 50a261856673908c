// Package teststore provides a sqlite-backed store for tests.
package teststore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/medrecall/medrecall/internal/profile"
	"github.com/medrecall/medrecall/store"
	"github.com/medrecall/medrecall/store/db"
)

// NewTestingStore opens a fresh sqlite database in a temp directory,
// runs migrations and the taxonomy seed, and returns the store.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	dir := t.TempDir()
	testProfile := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		Data:   dir,
		DSN:    filepath.Join(dir, "medrecall_test.db"),
	}

	dbDriver, err := db.NewDBDriver(testProfile)
	require.NoError(t, err)

	st := store.New(dbDriver, testProfile)
	require.NoError(t, st.Migrate(ctx))

	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}
