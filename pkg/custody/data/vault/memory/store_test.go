package memory

import (
	"testing"

	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/vault/tests"
)

func TestVaultMemoryStore(t *testing.T) {
	testStore := New()
	teardown := func() {
		testStore.(*store).reset()
	}
	tests.RunTests(t, testStore, teardown)
}
