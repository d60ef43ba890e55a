package common

import "strconv"

// PeerJob is one unit of work queued to the Peer Service: an action
// applied to a RawEntry, forwarded verbatim to every configured peer.
type PeerJob struct {
	Action Action
	Entry  RawEntry
}

// DedupKey is the full-equality dedup key the Peer Service's local buffer
// uses to collapse repeated identical jobs before a batch send.
func (j PeerJob) DedupKey() string {
	return j.Action.String() + "|" + j.Entry.Cidr.String() + "|" + string(j.Entry.Tag) + "|" +
		strconv.FormatUint(uint64(j.Entry.Expiration), 10)
}

func ValidatePeerJobFrom(in PeerJobInput) (PeerJob, *CompositeError) {
	var ce *CompositeError
	var action Action
	if err := action.UnmarshalText([]byte(in.Action)); err != nil {
		ce = fieldErr(ce, "action", err.Error())
	}
	entry, entryErr := ValidateRawEntryFrom(in.Entry)
	if entryErr != nil {
		if ce == nil {
			ce = entryErr
		} else {
			ce.Errors = append(ce.Errors, entryErr.Errors...)
		}
	}
	if ce != nil {
		return PeerJob{}, ce
	}
	return PeerJob{Action: action, Entry: entry}, nil
}
