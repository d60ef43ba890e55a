package xdpmap

import "testing"

func TestActionNamesIndexedByXDPActionCode(t *testing.T) {
	want := [5]string{"aborted", "drop", "pass", "tx", "redirect"}
	if ActionNames != want {
		t.Fatalf("got %v, want %v", ActionNames, want)
	}
}
