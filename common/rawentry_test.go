package common

import "testing"

func TestValidateRawEntryFromAccumulatesAllThreeFields(t *testing.T) {
	in := RawEntryInput{
		Cidr:       "not-a-cidr",
		Tag:        "has space",
		Expiration: 1,
	}
	_, cerr := ValidateRawEntryFrom(in)
	if cerr == nil {
		t.Fatal("expected a composite error")
	}
	fields := map[string]bool{}
	for _, d := range cerr.Errors {
		fields[d.Field] = true
	}
	for _, want := range []string{"cidr", "tag", "expiration"} {
		if !fields[want] {
			t.Errorf("expected a failure on field %q, got %+v", want, cerr.Errors)
		}
	}
}

func TestValidateRawEntryFromValidInput(t *testing.T) {
	in := RawEntryInput{
		Cidr:       "10.0.0.0/8",
		Tag:        "web",
		Expiration: 0,
	}
	out, cerr := ValidateRawEntryFrom(in)
	if cerr != nil {
		t.Fatalf("unexpected error: %v", cerr)
	}
	if out.Cidr.String() != "10.0.0.0/8" {
		t.Fatalf("got %q", out.Cidr.String())
	}
	if out.Tag != "web" {
		t.Fatalf("got tag %q", out.Tag)
	}
	if !out.Expiration.IsNever() {
		t.Fatal("expected never-expiring entry for zero timestamp")
	}
}

func TestValidateRawEntryFromEmptyTagIsAllowed(t *testing.T) {
	in := RawEntryInput{Cidr: "10.0.0.0/8"}
	out, cerr := ValidateRawEntryFrom(in)
	if cerr != nil {
		t.Fatalf("unexpected error: %v", cerr)
	}
	if out.Tag != "" {
		t.Fatalf("got tag %q, want empty", out.Tag)
	}
}
