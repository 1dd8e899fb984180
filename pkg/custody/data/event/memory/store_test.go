package memory

import (
	"testing"

	"github.com/buogwu/Non-Custodial-Bitcoin-Vault/pkg/custody/data/event/tests"
)

func TestEventMemoryStore(t *testing.T) {
	testStore := New()
	teardown := func() {
		testStore.(*store).reset()
	}
	tests.RunTests(t, testStore, teardown)
}
