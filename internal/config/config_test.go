package config

import (
	"os"
	"os/user"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, dir, owner, group string) string {
	t.Helper()
	path := filepath.Join(dir, "couic.conf")
	body := "[global]\n" +
		"ifaces=eth0\n" +
		"operation_mode=native\n" +
		"working_dir=" + filepath.Join(dir, "work") + "\n" +
		"user=" + owner + "\n" +
		"group=" + group + "\n" +
		"[server]\n" +
		"socket=" + filepath.Join(dir, "couic.sock") + "\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

func currentOwnerGroup(t *testing.T) (string, string) {
	t.Helper()
	u, err := user.Current()
	if err != nil {
		t.Skipf("cannot resolve current user: %v", err)
	}
	g, err := user.LookupGroupId(u.Gid)
	if err != nil {
		t.Skipf("cannot resolve current group: %v", err)
	}
	return u.Username, g.Name
}

func TestNewParsesGlobalAndServerSections(t *testing.T) {
	owner, group := currentOwnerGroup(t)
	dir := t.TempDir()
	path := writeTestConfig(t, dir, owner, group)

	cfg, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(cfg.Global.Ifaces) != 1 || cfg.Global.Ifaces[0] != "eth0" {
		t.Fatalf("got ifaces %v, want [eth0]", cfg.Global.Ifaces)
	}
	if cfg.Server.Socket != filepath.Join(dir, "couic.sock") {
		t.Fatalf("got socket %q", cfg.Server.Socket)
	}
}

func TestOperationModeParsing(t *testing.T) {
	owner, group := currentOwnerGroup(t)
	dir := t.TempDir()
	path := writeTestConfig(t, dir, owner, group)
	cfg, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mode, err := cfg.OperationMode()
	if err != nil {
		t.Fatalf("OperationMode: %v", err)
	}
	if mode != ModeNative {
		t.Fatalf("got mode %v, want ModeNative", mode)
	}
}

func TestParseOperationModeDefaultsToGeneric(t *testing.T) {
	mode, err := ParseOperationMode("")
	if err != nil {
		t.Fatalf("ParseOperationMode: %v", err)
	}
	if mode != ModeGeneric {
		t.Fatalf("got %v, want ModeGeneric", mode)
	}
}

func TestParseOperationModeRejectsUnknown(t *testing.T) {
	if _, err := ParseOperationMode("bogus"); err == nil {
		t.Fatal("expected an error for an unknown operation mode")
	}
}

func TestInitWorkingDirCreatesFixedSubdirs(t *testing.T) {
	owner, group := currentOwnerGroup(t)
	dir := t.TempDir()
	path := writeTestConfig(t, dir, owner, group)
	cfg, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := cfg.InitWorkingDir(); err != nil {
		t.Fatalf("InitWorkingDir: %v", err)
	}
	for _, sub := range []string{"rbac", "sets", "rbac/clients", "sets/ignore", "sets/drop"} {
		full := filepath.Join(cfg.Global.Working_Dir, sub)
		fi, err := os.Stat(full)
		if err != nil {
			t.Fatalf("expected %s to exist: %v", full, err)
		}
		if !fi.IsDir() {
			t.Fatalf("expected %s to be a directory", full)
		}
	}
	// calling it again against the now-existing tree must verify, not fail
	if err := cfg.InitWorkingDir(); err != nil {
		t.Fatalf("second InitWorkingDir: %v", err)
	}
}

func TestDirHelpersJoinWorkingDir(t *testing.T) {
	cfg := &Config{Global: Global{Working_Dir: "/var/lib/couic"}}
	if got, want := cfg.DropSetDir(), "/var/lib/couic/sets/drop"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got, want := cfg.IgnoreSetDir(), "/var/lib/couic/sets/ignore"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got, want := cfg.ClientsDir(), "/var/lib/couic/rbac/clients"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestBuildLoggerFallsBackToStderr(t *testing.T) {
	cfg := &Config{Logging: Logging{Level: "INFO"}}
	lgr, err := cfg.BuildLogger()
	if err != nil {
		t.Fatalf("BuildLogger: %v", err)
	}
	defer lgr.Close()
}
