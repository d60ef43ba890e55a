package security

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// WriteAtomic writes data to path using the tmp-file + chmod + rename
// dance: write to a sibling ".tmp" file, chown/chmod it to the daemon
// user/group and mode, then rename over the destination. A directory-level
// flock is held across the whole sequence so two racing writers (two REST
// requests writing the same set, for instance) cannot interleave a
// partial write with a rename. Readers such as set reconciliation do not
// take the lock.
func WriteAtomic(path string, data []byte, owner, group string, mode os.FileMode) error {
	dir := filepath.Dir(path)
	lock := flock.New(filepath.Join(dir, ".lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking %s: %w", dir, err)
	}
	defer lock.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := SetOwnerGroupPerms(tmp, owner, group, mode); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming %s to %s: %w", tmp, path, err)
	}
	return nil
}
