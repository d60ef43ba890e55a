package api

import (
	"net/http"

	"github.com/r3dlight/couic/internal/firewall"
	"github.com/r3dlight/couic/internal/logging"
	"github.com/r3dlight/couic/internal/rbac"
)

// Server holds the dependencies every handler closes over: the firewall
// facade, the RBAC service and a logger.
type Server struct {
	fw     *firewall.Service
	rbac   *rbac.Service
	logger *logging.Logger
}

// New builds a Server and its routed http.Handler.
func New(fw *firewall.Service, rbacSvc *rbac.Service, lgr *logging.Logger) (*Server, http.Handler) {
	s := &Server{fw: fw, rbac: rbacSvc, logger: lgr}
	return s, s.router()
}
