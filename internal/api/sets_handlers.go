package api

import (
	"encoding/json"
	"net/http"

	"github.com/r3dlight/couic/common"
)

// handleSetCollection serves GET/POST /v1/sets/{policy}.
func (s *Server) handleSetCollection(w http.ResponseWriter, r *http.Request, policy common.Policy) {
	switch r.Method {
	case http.MethodGet:
		sets, err := s.fw.ListSets(policy)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sets)
	case http.MethodPost:
		var in common.SetInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, common.BadRequest("malformed JSON body"))
			return
		}
		set, ce := common.ValidateSetFrom(in)
		if ce != nil {
			writeError(w, ce)
			return
		}
		raw := make([]string, 0, len(set.Entries))
		for _, e := range set.Entries {
			raw = append(raw, e.String())
		}
		result, err := s.fw.PutSet(policy, set.Name, raw)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	default:
		writeError(w, common.NewCompositeError(common.ErrNotImplemented, "method not allowed"))
	}
}

// handleSetEntry serves GET/PUT/DELETE /v1/sets/{policy}/{name}.
func (s *Server) handleSetEntry(w http.ResponseWriter, r *http.Request, policy common.Policy, nameSeg string) {
	sp, ce := common.ValidateSetPathFrom(common.SetPathInput{Policy: policy.String(), Name: nameSeg})
	if ce != nil {
		writeError(w, ce)
		return
	}
	switch r.Method {
	case http.MethodGet:
		set, err := s.fw.GetSet(sp.Policy, sp.Name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, set)
	case http.MethodPut:
		var in common.SetInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, common.BadRequest("malformed JSON body"))
			return
		}
		in.Name = string(sp.Name)
		set, vce := common.ValidateSetFrom(in)
		if vce != nil {
			writeError(w, vce)
			return
		}
		raw := make([]string, 0, len(set.Entries))
		for _, e := range set.Entries {
			raw = append(raw, e.String())
		}
		result, err := s.fw.PutSet(sp.Policy, sp.Name, raw)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case http.MethodDelete:
		if err := s.fw.DeleteSet(sp.Policy, sp.Name); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, common.NewCompositeError(common.ErrNotImplemented, "method not allowed"))
	}
}

// handleSetsReload serves POST /v1/sets/reload: a full, unconditional
// reconciliation pass over both policies' set directories.
func (s *Server) handleSetsReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, common.NewCompositeError(common.ErrNotImplemented, "method not allowed"))
		return
	}
	if err := s.fw.ReconcileAll(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reload_status": "OK"})
}
