package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/r3dlight/couic/common"
)

// router builds the full /v1 REST surface. Every route but the metrics
// and stats-stream endpoints requires a bearer token authorized for the
// route's Scope.
func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()

	policyScope := func(v common.Verb) common.Scope { return common.Scope{Resource: common.ResourcePolicy, Verb: v} }
	setsScope := func(v common.Verb) common.Scope { return common.Scope{Resource: common.ResourceSets, Verb: v} }
	clientsScope := func(v common.Verb) common.Scope { return common.Scope{Resource: common.ResourceClients, Verb: v} }
	statsScope := func(v common.Verb) common.Scope { return common.Scope{Resource: common.ResourceStats, Verb: v} }

	v1.HandleFunc("/{policy}", s.requireScope(policyScope(common.VerbAny), s.policyCollection)).
		Methods(http.MethodGet, http.MethodPost)
	v1.HandleFunc("/{policy}/peer", s.requireScope(common.Scope{Resource: common.ResourcePolicy, Verb: common.VerbPeer}, s.peerRoute)).
		Methods(http.MethodPost)
	v1.HandleFunc("/{policy}/{ip}/{prefix}", s.requireScope(policyScope(common.VerbAny), s.policyEntry)).
		Methods(http.MethodGet, http.MethodDelete)

	v1.HandleFunc("/sets/reload", s.requireScope(setsScope(common.VerbAny), s.handleSetsReload)).
		Methods(http.MethodPost)
	v1.HandleFunc("/sets/{policy}", s.requireScope(setsScope(common.VerbAny), s.setCollection)).
		Methods(http.MethodGet, http.MethodPost)
	v1.HandleFunc("/sets/{policy}/{name}", s.requireScope(setsScope(common.VerbAny), s.setEntry)).
		Methods(http.MethodGet, http.MethodPut, http.MethodDelete)

	v1.HandleFunc("/client", s.requireScope(clientsScope(common.VerbAny), s.handleClientCollection)).
		Methods(http.MethodGet, http.MethodPost)
	v1.HandleFunc("/client/{name}", s.requireScope(clientsScope(common.VerbAny), s.clientEntry)).
		Methods(http.MethodGet, http.MethodDelete)

	v1.HandleFunc("/stats", s.requireScope(statsScope(common.VerbList), s.handleStats)).
		Methods(http.MethodGet)
	v1.HandleFunc("/stats/tags/{policy}", s.requireScope(statsScope(common.VerbList), s.tagStats)).
		Methods(http.MethodGet)
	v1.HandleFunc("/stats/stream", s.handleStatsStream).Methods(http.MethodGet)
	v1.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	return r
}

func policyFromRoute(w http.ResponseWriter, r *http.Request) (common.Policy, bool) {
	p, err := parsePolicyFromPath(mux.Vars(r)["policy"])
	if err != nil {
		writeError(w, common.Invalid(err.Error()))
		return 0, false
	}
	return p, true
}

func (s *Server) policyCollection(w http.ResponseWriter, r *http.Request) {
	policy, ok := policyFromRoute(w, r)
	if !ok {
		return
	}
	s.handlePolicyCollection(w, r, policy)
}

func (s *Server) peerRoute(w http.ResponseWriter, r *http.Request) {
	policy, ok := policyFromRoute(w, r)
	if !ok {
		return
	}
	s.handlePeer(w, r, policy)
}

func (s *Server) policyEntry(w http.ResponseWriter, r *http.Request) {
	policy, ok := policyFromRoute(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	s.handlePolicyEntry(w, r, policy, vars["ip"], vars["prefix"])
}

func (s *Server) setCollection(w http.ResponseWriter, r *http.Request) {
	policy, ok := policyFromRoute(w, r)
	if !ok {
		return
	}
	s.handleSetCollection(w, r, policy)
}

func (s *Server) setEntry(w http.ResponseWriter, r *http.Request) {
	policy, ok := policyFromRoute(w, r)
	if !ok {
		return
	}
	s.handleSetEntry(w, r, policy, mux.Vars(r)["name"])
}

func (s *Server) clientEntry(w http.ResponseWriter, r *http.Request) {
	s.handleClientEntry(w, r, mux.Vars(r)["name"])
}

func (s *Server) tagStats(w http.ResponseWriter, r *http.Request) {
	policy, ok := policyFromRoute(w, r)
	if !ok {
		return
	}
	s.handleTagStats(w, r, policy)
}
