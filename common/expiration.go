package common

import "time"

// Expiration is a Unix-epoch-seconds timestamp; zero means "never".
type Expiration uint64

// NeverExpiration is the sentinel Entry.Expiration value meaning "never".
const NeverExpiration Expiration = 0

// ExpirationFromTimestamp wraps a raw epoch-seconds value. It does not
// itself reject past timestamps — callers that need the "must be in the
// future or zero" rule (RawEntry validation) check IsExpired explicitly so
// the rule is visible at the call site rather than buried in the type.
func ExpirationFromTimestamp(epochSeconds uint64) Expiration {
	return Expiration(epochSeconds)
}

func (e Expiration) IsNever() bool {
	return e == NeverExpiration
}

func (e Expiration) IsExpired() bool {
	if e.IsNever() {
		return false
	}
	return uint64(e) <= uint64(time.Now().Unix())
}

func (e Expiration) Time() (t time.Time, never bool) {
	if e.IsNever() {
		return time.Time{}, true
	}
	return time.Unix(int64(e), 0).UTC(), false
}
