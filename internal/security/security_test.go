package security

import (
	"os"
	"testing"
)

// TestCheckRequiredCapabilities mirrors the uid-gated shape of the
// teacher's own capability test: a non-root, non-capability-holding
// process must fail the check; root (or a process granted the caps in a
// container) must pass it.
func TestCheckRequiredCapabilities(t *testing.T) {
	if uid := os.Getuid(); uid == 0 {
		if err := CheckRequiredCapabilities(); err != nil {
			t.Fatalf("root should hold CAP_NET_ADMIN/CAP_SYS_ADMIN: %v", err)
		}
		return
	}
	if err := CheckRequiredCapabilities(); err == nil {
		t.Fatal("expected a non-root, non-capability-holding process to fail the check")
	}
}
