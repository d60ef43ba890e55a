// Package security implements the daemon's privilege and file-safety
// checks: directory/file ownership and mode verification, the startup
// capability check, and dropping privileges once the XDP program is
// attached, using the capability primitives golang.org/x/sys/unix exposes.
package security

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	// FileMode is the required mode for every RBAC client file and set file.
	FileMode = 0600
	// DirMode is the required mode for working-dir subdirectories.
	DirMode = 0755
	// SocketMode is the required mode for the REST control socket.
	SocketMode = 0770
)

// Linux capability numbers used by the startup check, per
// include/uapi/linux/capability.h.
const (
	capNetAdmin = 12
	capSysAdmin = 21
)

// CheckOwnerGroupPerms verifies path is owned by the given user:group and
// has exactly the given mode, returning a descriptive error naming both
// the expected and actual mode on mismatch.
func CheckOwnerGroupPerms(path, wantUser, wantGroup string, wantMode os.FileMode) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return fmt.Errorf("cannot determine ownership of %s", path)
	}
	wantUID, wantGID, err := lookupUserGroup(wantUser, wantGroup)
	if err != nil {
		return err
	}
	if st.Uid != wantUID || st.Gid != wantGID {
		return fmt.Errorf("%s: owned by uid=%d gid=%d (expected uid=%d gid=%d)", path, st.Uid, st.Gid, wantUID, wantGID)
	}
	if fi.Mode().Perm() != wantMode {
		return fmt.Errorf("%s: mode=%04o (expected mode=%04o)", path, fi.Mode().Perm(), wantMode)
	}
	return nil
}

// SetOwnerGroupPerms chowns and chmods path to the given user:group and mode.
func SetOwnerGroupPerms(path, wantUser, wantGroup string, mode os.FileMode) error {
	uid, gid, err := lookupUserGroup(wantUser, wantGroup)
	if err != nil {
		return err
	}
	if err := os.Chown(path, int(uid), int(gid)); err != nil {
		return err
	}
	return os.Chmod(path, mode)
}

func lookupUserGroup(wantUser, wantGroup string) (uid, gid uint32, err error) {
	u, err := user.Lookup(wantUser)
	if err != nil {
		return 0, 0, fmt.Errorf("unknown user %q: %w", wantUser, err)
	}
	g, err := user.LookupGroup(wantGroup)
	if err != nil {
		return 0, 0, fmt.Errorf("unknown group %q: %w", wantGroup, err)
	}
	uidN, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return 0, 0, err
	}
	gidN, err := strconv.ParseUint(g.Gid, 10, 32)
	if err != nil {
		return 0, 0, err
	}
	return uint32(uidN), uint32(gidN), nil
}

// linuxCapHeader/linuxCapData mirror struct __user_cap_header_struct and
// struct __user_cap_data_struct from linux/capability.h; x/sys/unix does
// not expose capget/capset wrappers, so the raw syscall ABI is used
// directly, the same way container runtimes implement capability drop.
type linuxCapHeader struct {
	version uint32
	pid     int32
}

type linuxCapData struct {
	effective   uint32
	permitted   uint32
	inheritable uint32
}

const linuxCapVersion3 = 0x20080522

// CheckRequiredCapabilities verifies the running process holds
// CAP_NET_ADMIN and CAP_SYS_ADMIN in its effective set, required to load
// the XDP program and attach it to interfaces.
func CheckRequiredCapabilities() error {
	hdr := linuxCapHeader{version: linuxCapVersion3}
	var data [2]linuxCapData
	if err := capget(&hdr, &data[0]); err != nil {
		return fmt.Errorf("reading process capabilities: %w", err)
	}
	for _, c := range []struct {
		bit  uint
		name string
	}{{capNetAdmin, "CAP_NET_ADMIN"}, {capSysAdmin, "CAP_SYS_ADMIN"}} {
		word, bit := c.bit/32, c.bit%32
		eff := data[0].effective
		if word == 1 {
			eff = data[1].effective
		}
		if eff&(1<<bit) == 0 {
			return fmt.Errorf("missing required capability %s", c.name)
		}
	}
	return nil
}

// DropAllCapsNoNewPrivs drops every capability from the process's
// effective/permitted/inheritable sets and sets PR_SET_NO_NEW_PRIVS, once
// the XDP program is attached and capabilities are no longer needed.
func DropAllCapsNoNewPrivs() error {
	hdr := linuxCapHeader{version: linuxCapVersion3}
	var data [2]linuxCapData
	if err := capset(&hdr, &data[0]); err != nil {
		return fmt.Errorf("dropping capabilities: %w", err)
	}
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("setting no_new_privs: %w", err)
	}
	return nil
}

func capget(hdr *linuxCapHeader, data *linuxCapData) error {
	_, _, errno := unix.Syscall(unix.SYS_CAPGET, uintptr(unsafe.Pointer(hdr)), uintptr(unsafe.Pointer(data)), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func capset(hdr *linuxCapHeader, data *linuxCapData) error {
	_, _, errno := unix.Syscall(unix.SYS_CAPSET, uintptr(unsafe.Pointer(hdr)), uintptr(unsafe.Pointer(data)), 0)
	if errno != 0 {
		return errno
	}
	return nil
}
