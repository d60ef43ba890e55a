package api

import (
	"encoding/json"
	"net/http"

	"github.com/r3dlight/couic/common"
)

// handleClientCollection serves GET/POST /v1/client.
func (s *Server) handleClientCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.rbac.ListClients())
	case http.MethodPost:
		var in common.ClientInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, common.BadRequest("malformed JSON body"))
			return
		}
		name, group, ce := common.ValidateClientFrom(in)
		if ce != nil {
			writeError(w, ce)
			return
		}
		client, err := s.rbac.AddClient(name, group)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, client)
	default:
		writeError(w, common.NewCompositeError(common.ErrNotImplemented, "method not allowed"))
	}
}

// handleClientEntry serves GET/DELETE /v1/client/{name}.
func (s *Server) handleClientEntry(w http.ResponseWriter, r *http.Request, nameSeg string) {
	name, ce := common.ValidateClientNameFrom(nameSeg)
	if ce != nil {
		writeError(w, ce)
		return
	}
	switch r.Method {
	case http.MethodGet:
		client, ok := s.rbac.GetClientByName(name)
		if !ok {
			writeError(w, common.NotFound("client not found"))
			return
		}
		writeJSON(w, http.StatusOK, client)
	case http.MethodDelete:
		if err := s.rbac.DeleteClientByName(name); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, common.NewCompositeError(common.ErrNotImplemented, "method not allowed"))
	}
}
