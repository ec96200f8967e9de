package memory

import (
	"testing"

	"github.com/vaultwire/vaultwire/internal/store"
	"github.com/vaultwire/vaultwire/internal/store/storetest"
)

func TestMemoryStore_Compliance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}
