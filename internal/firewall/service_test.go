package firewall

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/r3dlight/couic/common"
)

func TestReadSetFileSkipsBlankAndCommentLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mirrors.couic")
	body := "10.0.0.0/8\n" +
		"# a comment\n" +
		"\n" +
		"  172.16.0.0/12  \n" +
		"#192.168.0.0/16 disabled\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	entries, err := readSetFile(path)
	if err != nil {
		t.Fatalf("readSetFile: %v", err)
	}
	want := []string{"10.0.0.0/8", "172.16.0.0/12"}
	if len(entries) != len(want) {
		t.Fatalf("got %v, want %v", entries, want)
	}
	for i, w := range want {
		if entries[i] != w {
			t.Errorf("entry %d: got %q, want %q", i, entries[i], w)
		}
	}
}

func TestReadSetFileMissingReturnsError(t *testing.T) {
	if _, err := readSetFile(filepath.Join(t.TempDir(), "missing.couic")); err == nil {
		t.Fatal("expected an error for a missing set file")
	}
}

func TestSetFilePathAppendsCouicSuffix(t *testing.T) {
	got := setFilePath("/var/lib/couic/sets/drop", common.SetName("mirrors"))
	if want := "/var/lib/couic/sets/drop/mirrors.couic"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
