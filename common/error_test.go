package common

import "testing"

func TestErrorCodeString(t *testing.T) {
	cases := map[ErrorCode]string{
		ErrProcessing:     "processing",
		ErrUnauthorized:   "unauthorized",
		ErrNotFound:       "not_found",
		ErrConflict:       "conflict",
		ErrBadRequest:     "bad_request",
		ErrInvalid:        "invalid",
		ErrInternal:       "internal",
		ErrNotImplemented: "not_implemented",
		ErrUnknown:        "unknown",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Errorf("code %d: got %q, want %q", code, got, want)
		}
	}
}

func TestCompositeErrorAccumulatesIndependently(t *testing.T) {
	err := Invalid("invalid SetInput").
		Add("name", "name must be alphanumeric").
		Add("entries[1]", "invalid CIDR notation")
	if !err.HasErrors() {
		t.Fatal("expected HasErrors to be true")
	}
	if len(err.Errors) != 2 {
		t.Fatalf("got %d errors, want 2", len(err.Errors))
	}
	if err.Code != ErrInvalid {
		t.Fatalf("got code %v, want ErrInvalid", err.Code)
	}
}

func TestCompositeErrorHasErrorsNilSafe(t *testing.T) {
	var err *CompositeError
	if err.HasErrors() {
		t.Fatal("nil *CompositeError must report HasErrors() == false")
	}
}

func TestCompositeErrorErrorStringWithoutDetails(t *testing.T) {
	err := NotFound("entry not found")
	if got := err.Error(); got != "entry not found" {
		t.Fatalf("got %q", got)
	}
}
