package common

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxSetFileSize is the 5 MiB on-disk size cap for one set file.
const MaxSetFileSize = 5 * 1024 * 1024

// Set is a named, declarative collection of CIDRs read from disk; its
// entries appear in-kernel as Entries tagged Name.Tag().
type Set struct {
	Name    SetName
	Entries []NormalizedCidr
}

func (s Set) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Set: %s\nEntry count: %d\nEntries:\n", s.Name, len(s.Entries))
	for _, e := range s.Entries {
		fmt.Fprintf(&b, "\t%s\n", e)
	}
	return b.String()
}

// SetSummary is the compact listing form returned by /v1/sets.
type SetSummary struct {
	Name       SetName `json:"name"`
	EntryCount int     `json:"entry_count"`
	FileSize   int64   `json:"file_size"`
}

func (s SetSummary) String() string {
	return fmt.Sprintf("%s: %d entries (%d bytes)", s.Name, s.EntryCount, s.FileSize)
}

// ValidateSetEntriesSize sums len(entry.String())+1 per entry (the
// serialized-line cost, newline included) and rejects the set if it would
// exceed MaxSetFileSize, mirroring the on-disk file size cap.
func ValidateSetEntriesSize(entries []NormalizedCidr) *CompositeError {
	total := 0
	for _, e := range entries {
		total += len(e.String()) + 1
	}
	if total > MaxSetFileSize {
		return Invalid("set too large").Add("entries",
			"entries total "+strconv.Itoa(total)+" bytes, exceeds the "+strconv.Itoa(MaxSetFileSize)+" byte limit")
	}
	return nil
}

// ValidateSetFrom validates name and every entry independently,
// accumulating per-index entry errors ("entries[i]") alongside a "name"
// error if both are wrong. An empty entry list is valid.
func ValidateSetFrom(in SetInput) (Set, *CompositeError) {
	var ce *CompositeError
	name, nameErr := ValidateSetNameFrom(in.Name)
	if nameErr != nil {
		ce = fieldErr(ce, "name", nameErr.Errors[0].Message)
	}
	entries := make([]NormalizedCidr, 0, len(in.Entries))
	for i, raw := range in.Entries {
		cidr, err := ParseNormalizedCidr(raw)
		if err != nil {
			ce = fieldErr(ce, fmt.Sprintf("entries[%d]", i), err.Error())
			continue
		}
		entries = append(entries, cidr)
	}
	if ce == nil {
		if sizeErr := ValidateSetEntriesSize(entries); sizeErr != nil {
			ce = sizeErr
		}
	}
	if ce != nil {
		return Set{}, ce
	}
	return Set{Name: name, Entries: entries}, nil
}
