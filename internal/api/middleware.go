package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/r3dlight/couic/common"
	"github.com/r3dlight/couic/internal/logging"
)

type ctxKey int

const clientCtxKey ctxKey = 0

// requireScope wraps a handler with bearer-token authorization against
// scope, via a bearer token of the form "Authorization: Bearer <uuid-v4>".
// On success it logs the calling client's name and group against the
// request for audit purposes and makes the client available via
// clientFromContext.
func (s *Server) requireScope(scope common.Scope, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) {
			writeError(w, common.Unauthorized("missing bearer token"))
			return
		}
		token, err := uuid.Parse(strings.TrimPrefix(auth, prefix))
		if err != nil {
			writeError(w, common.Unauthorized("malformed bearer token"))
			return
		}
		client, ok := s.rbac.CheckAuthorization(token, scope)
		if !ok {
			writeError(w, common.Unauthorized("token does not authorize this operation"))
			return
		}
		if s.logger != nil {
			s.logger.Info("authorized request",
				logging.KV("client", string(client.Name)),
				logging.KV("group", client.Group.String()),
				logging.KV("method", r.Method),
				logging.KV("path", r.URL.Path),
			)
		}
		ctx := context.WithValue(r.Context(), clientCtxKey, client)
		next(w, r.WithContext(ctx))
	}
}

func clientFromContext(r *http.Request) (common.Client, bool) {
	c, ok := r.Context().Value(clientCtxKey).(common.Client)
	return c, ok
}
