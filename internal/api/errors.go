// Package api is the thin REST front-end: routing, the ErrorCode→status
// mapping, RBAC bearer-token middleware, and the supplemental websocket
// stats stream and prometheus metrics endpoint. The HTTP transport,
// routing library internals and JSON codec are otherwise out of scope
// here — this package is deliberately thin glue over internal/firewall
// and internal/rbac.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/r3dlight/couic/common"
)

// statusFor maps a common.ErrorCode to its fixed HTTP status, per
// the fixed table below.
func statusFor(code common.ErrorCode) int {
	switch code {
	case common.ErrProcessing:
		return http.StatusAccepted
	case common.ErrUnauthorized:
		return http.StatusUnauthorized
	case common.ErrNotFound:
		return http.StatusNotFound
	case common.ErrConflict:
		return http.StatusConflict
	case common.ErrBadRequest:
		return http.StatusBadRequest
	case common.ErrInvalid:
		return http.StatusUnprocessableEntity
	case common.ErrInternal:
		return http.StatusInternalServerError
	case common.ErrNotImplemented:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// writeError renders err as the fixed {code, message, errors} JSON body
// at its mapped status code. Non-CompositeError values are wrapped as
// ErrInternal so every handler path returns the same shape.
func writeError(w http.ResponseWriter, err error) {
	var ce *common.CompositeError
	if !errors.As(err, &ce) {
		ce = common.Internal(err.Error())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(ce.Code))
	json.NewEncoder(w).Encode(ce)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
