package common

import "testing"

func TestValidateTagFromEmptyIsAllowed(t *testing.T) {
	tag, cerr := ValidateTagFrom("")
	if cerr != nil {
		t.Fatalf("unexpected error: %v", cerr)
	}
	if tag != "" {
		t.Fatalf("got %q, want empty tag", tag)
	}
}

func TestValidateTagFromRejectsReservedNames(t *testing.T) {
	cases := []string{"untagged", "UNTAGGED", "UnTagged", "mirror.couic", "x.couic"}
	for _, raw := range cases {
		if _, cerr := ValidateTagFrom(raw); cerr == nil {
			t.Fatalf("expected rejection for %q", raw)
		}
	}
}

func TestValidateTagFromRejectsBadCharsAndLength(t *testing.T) {
	if _, cerr := ValidateTagFrom("has space"); cerr == nil {
		t.Fatal("expected rejection for tag with a space")
	}
	over := make([]byte, maxTagLen+1)
	for i := range over {
		over[i] = 'a'
	}
	if _, cerr := ValidateTagFrom(string(over)); cerr == nil {
		t.Fatal("expected rejection for over-length tag")
	}
}

func TestValidateTagFromAcceptsValid(t *testing.T) {
	tag, cerr := ValidateTagFrom("web-server_01")
	if cerr != nil {
		t.Fatalf("unexpected error: %v", cerr)
	}
	if tag != "web-server_01" {
		t.Fatalf("got %q", tag)
	}
}

func TestTagDisplaySubstitutesUntagged(t *testing.T) {
	var empty Tag
	if got := empty.Display(); got != UntaggedDisplay {
		t.Fatalf("got %q, want %q", got, UntaggedDisplay)
	}
	named := Tag("web")
	if got := named.Display(); got != "web" {
		t.Fatalf("got %q, want web", got)
	}
}
