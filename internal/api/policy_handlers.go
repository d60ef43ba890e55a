package api

import (
	"encoding/json"
	"net/http"

	"github.com/r3dlight/couic/common"
)

// handlePolicyCollection serves GET/POST /v1/{policy}.
func (s *Server) handlePolicyCollection(w http.ResponseWriter, r *http.Request, policy common.Policy) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.fw.ListEntries(policy))
	case http.MethodPost:
		var in common.RawEntryInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, common.BadRequest("malformed JSON body"))
			return
		}
		re, ce := common.ValidateRawEntryFrom(in)
		if ce != nil {
			writeError(w, ce)
			return
		}
		entry, err := s.fw.AddEntry(policy, re)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, entry)
	default:
		writeError(w, common.NewCompositeError(common.ErrNotImplemented, "method not allowed"))
	}
}

// handlePolicyEntry serves GET/DELETE /v1/{policy}/{ip}/{prefix}.
func (s *Server) handlePolicyEntry(w http.ResponseWriter, r *http.Request, policy common.Policy, ip, prefix string) {
	pp, ce := common.ValidatePolicyPathFrom(common.PolicyPathInput{Policy: policy.String(), IP: ip, Prefix: prefix})
	if ce != nil {
		writeError(w, ce)
		return
	}
	switch r.Method {
	case http.MethodGet:
		entry, err := s.fw.GetEntry(pp.Policy, pp.Cidr)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	case http.MethodDelete:
		if err := s.fw.RemoveEntry(pp.Policy, pp.Cidr); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, common.NewCompositeError(common.ErrNotImplemented, "method not allowed"))
	}
}

// handlePeer serves POST /v1/{policy}/peer.
func (s *Server) handlePeer(w http.ResponseWriter, r *http.Request, policy common.Policy) {
	if r.Method != http.MethodPost {
		writeError(w, common.NewCompositeError(common.ErrNotImplemented, "method not allowed"))
		return
	}
	var ins []common.PeerJobInput
	if err := json.NewDecoder(r.Body).Decode(&ins); err != nil {
		writeError(w, common.BadRequest("malformed JSON body"))
		return
	}
	accepted := make([]common.PeerJob, 0, len(ins))
	for _, in := range ins {
		job, ce := common.ValidatePeerJobFrom(in)
		if ce != nil {
			writeError(w, ce)
			return
		}
		if job.Action == common.ActionRemove {
			s.fw.RemoveEntry(policy, job.Entry.Cidr)
		} else {
			s.fw.AddEntry(policy, job.Entry)
		}
		accepted = append(accepted, job)
	}
	writeJSON(w, http.StatusOK, accepted)
}

// parsePolicyFromPath extracts the {policy} path segment and validates it.
func parsePolicyFromPath(seg string) (common.Policy, error) {
	return common.ParsePolicy(seg)
}
