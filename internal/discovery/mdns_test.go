package discovery

import (
	"context"
	"testing"
)

func TestAdvertise_DisabledIsNoOp(t *testing.T) {
	cleanup, err := Advertise(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Advertise with Enabled=false returned error: %v", err)
	}
	cleanup() // must not panic
}
