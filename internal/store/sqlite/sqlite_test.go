package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/vaultwire/vaultwire/internal/store"
	"github.com/vaultwire/vaultwire/internal/store/storetest"
)

func makeSqliteStore(t *testing.T) store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	return s
}

func TestSqliteStore_Compliance(t *testing.T) {
	storetest.Run(t, makeSqliteStore)
}
