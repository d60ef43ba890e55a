// Command couicd is the couic firewall daemon: it loads its configuration,
// bootstraps the RBAC and Firewall services, drops every capability and
// sets no_new_privs once the XDP program is attached, then serves the REST
// API over a Unix domain socket.
package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/r3dlight/couic/internal/api"
	"github.com/r3dlight/couic/internal/config"
	"github.com/r3dlight/couic/internal/firewall"
	"github.com/r3dlight/couic/internal/logging"
	"github.com/r3dlight/couic/internal/rbac"
	"github.com/r3dlight/couic/internal/security"
)

const (
	appName    = "couicd"
	appVersion = "0.1.0"
)

func main() {
	configPath := flag.String("config", "/etc/couic/couic.conf", "path to the couic daemon configuration file")
	bpfPath := flag.String("bpf-object", "/etc/couic/couic.o", "path to the compiled XDP object to load")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", appName, appVersion)
		return
	}
	fmt.Printf("Starting %s version %s\n", appName, appVersion)

	cfg, err := config.New(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.InitWorkingDir(); err != nil {
		fmt.Fprintf(os.Stderr, "initializing working directory: %v\n", err)
		os.Exit(1)
	}

	lgr, err := cfg.BuildLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer lgr.Close()

	audit, err := firewall.OpenAuditLog(cfg.AuditDBPath())
	if err != nil {
		lgr.Errorf("opening audit log: %v", err)
		os.Exit(1)
	}
	defer audit.Close()
	if err := lgr.AddRelay(audit); err != nil {
		lgr.Errorf("attaching audit log: %v", err)
		os.Exit(1)
	}

	if err := security.CheckRequiredCapabilities(); err != nil {
		lgr.Errorf("required capabilities: %v", err)
		os.Exit(1)
	}

	rbacSvc, err := rbac.New(cfg.ClientsDir(), cfg.Global.User, cfg.Global.Group, lgr)
	if err != nil {
		lgr.Errorf("failed to instantiate RBAC service: %v", err)
		os.Exit(1)
	}

	bytecode, err := os.ReadFile(*bpfPath)
	if err != nil {
		lgr.Errorf("reading XDP object %s: %v", *bpfPath, err)
		os.Exit(1)
	}

	fw := firewall.New(cfg, lgr)
	mode, err := cfg.OperationMode()
	if err != nil {
		lgr.Errorf("invalid operation_mode: %v", err)
		os.Exit(1)
	}
	if err := fw.Start(bytecode, cfg.Global.Ifaces, mode); err != nil {
		lgr.Errorf("failed to start firewall service: %v", err)
		os.Exit(1)
	}
	defer fw.Stop()

	if err := security.DropAllCapsNoNewPrivs(); err != nil {
		lgr.Errorf("dropping capabilities: %v", err)
		os.Exit(1)
	}

	_, handler := api.New(fw, rbacSvc, lgr)
	if err := serve(cfg, handler, lgr); err != nil {
		lgr.Errorf("server exited: %v", err)
		os.Exit(1)
	}
}

func serve(cfg *config.Config, handler http.Handler, lgr *logging.Logger) error {
	socket := cfg.Server.Socket
	if _, err := os.Stat(socket); err == nil {
		if err := os.Remove(socket); err != nil {
			return fmt.Errorf("removing stale socket %s: %w", socket, err)
		}
	}
	ln, err := net.Listen("unix", socket)
	if err != nil {
		return fmt.Errorf("binding unix socket %s: %w", socket, err)
	}
	if err := security.SetOwnerGroupPerms(socket, cfg.Global.User, cfg.Global.Group, security.SocketMode); err != nil {
		return fmt.Errorf("setting socket permissions: %w", err)
	}
	lgr.Info("couicd listening", logging.KV("socket", socket))
	return http.Serve(ln, handler)
}
