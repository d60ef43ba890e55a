// Package config loads the couic daemon's own configuration file with
// gcfg, an INI-style config parser, and bootstraps the on-disk working
// directory layout the RBAC and firewall set stores expect. Client records
// are TOML and set files are plain text (one CIDR per line), neither is
// gcfg — see internal/rbac and internal/firewall for those readers.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gravwell/gcfg"

	"github.com/r3dlight/couic/internal/logging"
	"github.com/r3dlight/couic/internal/security"
)

// OperationMode controls the XDP attach flags (generic/native/offloaded).
type OperationMode int

const (
	ModeGeneric OperationMode = iota
	ModeNative
	ModeOffloaded
)

func ParseOperationMode(s string) (OperationMode, error) {
	switch s {
	case "", "generic":
		return ModeGeneric, nil
	case "native":
		return ModeNative, nil
	case "offloaded":
		return ModeOffloaded, nil
	}
	return 0, fmt.Errorf("invalid operation mode %q", s)
}

// Global holds the top-level, section-less directives.
type Global struct {
	Ifaces        []string
	Operation_Mode string
	Working_Dir   string
	User          string
	Group         string
}

type Logging struct {
	Dir           string
	Rotation      string // daily, weekly, never
	Max_Log_Files int
	Format        string // text, json
	Level         string
}

type Server struct {
	Socket string
}

type Reporting struct {
	Enabled       bool
	Webhook       string
	Kafka_Brokers []string
	Kafka_Topic   string
}

// Peer is one named [Peer "name"] subsection.
type Peer struct {
	Host         string
	Port         int
	Tls          bool
	Token        string
	Sign_Batches bool
	Secret       string
}

type Peering struct {
	Enabled bool
	Peer    map[string]*Peer
}

// Config is the root gcfg document. Field names follow gcfg's
// exported-identifier-as-section/key convention, the same shape
// ingest/config gives its own multi-backend configs.
type Config struct {
	Global    Global
	Logging   Logging
	Server    Server
	Reporting Reporting
	Peering   Peering
}

const defaultConfigPath = "/etc/couic/couic.conf"

// New reads and parses the gcfg document at path.
func New(path string) (*Config, error) {
	if path == "" {
		path = defaultConfigPath
	}
	var c Config
	if err := gcfg.ReadFileInto(&c, path); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &c, nil
}

func (c *Config) OperationMode() (OperationMode, error) {
	return ParseOperationMode(c.Global.Operation_Mode)
}

// workingDirSubdirs is the fixed set of subdirectories init_working_dir
// creates and verifies.
var workingDirSubdirs = []string{
	"rbac",
	"sets",
	"rbac/clients",
	"sets/ignore",
	"sets/drop",
}

// InitWorkingDir creates working_dir and every required subdirectory with
// DirMode if absent, or verifies ownership/mode if present.
func (c *Config) InitWorkingDir() error {
	base := c.Global.Working_Dir
	if base == "" {
		return fmt.Errorf("working_dir is not configured")
	}
	for _, sub := range append([]string{"."}, workingDirSubdirs...) {
		dir := filepath.Join(base, sub)
		if fi, err := os.Stat(dir); err == nil {
			if !fi.IsDir() {
				return fmt.Errorf("%s exists and is not a directory", dir)
			}
			if err := security.CheckOwnerGroupPerms(dir, c.Global.User, c.Global.Group, security.DirMode); err != nil {
				return err
			}
			continue
		} else if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(dir, security.DirMode); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		if err := security.SetOwnerGroupPerms(dir, c.Global.User, c.Global.Group, security.DirMode); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) DropSetDir() string   { return filepath.Join(c.Global.Working_Dir, "sets", "drop") }
func (c *Config) IgnoreSetDir() string { return filepath.Join(c.Global.Working_Dir, "sets", "ignore") }
func (c *Config) ClientsDir() string   { return filepath.Join(c.Global.Working_Dir, "rbac", "clients") }
func (c *Config) AuditDBPath() string  { return filepath.Join(c.Global.Working_Dir, "audit.db") }

// BuildLogger wires internal/logging per the Logging section: a single
// sink, couic.log under Logging.Dir (or stderr if Dir is unset), with the
// level the config names; Format "text" selects raw lines, any other value
// RFC5424. Rotation and Max_Log_Files are not read, and the log file is
// not rotated.
func (c *Config) BuildLogger() (*logging.Logger, error) {
	var lgr *logging.Logger
	if c.Logging.Dir != "" {
		if err := os.MkdirAll(c.Logging.Dir, security.DirMode); err != nil {
			return nil, fmt.Errorf("creating log dir: %w", err)
		}
		f, err := logging.NewFile(filepath.Join(c.Logging.Dir, "couic.log"))
		if err != nil {
			return nil, err
		}
		lgr = f
	} else {
		lgr = logging.NewStderrLogger()
	}
	if c.Logging.Format == "text" {
		lgr.EnableRawMode()
	}
	if c.Logging.Level != "" {
		if err := lgr.SetLevelString(c.Logging.Level); err != nil {
			return nil, err
		}
	}
	return lgr, nil
}
