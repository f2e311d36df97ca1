//go:build linux || darwin || freebsd || openbsd || netbsd

package diskwalk

import (
	"os"
	"syscall"
)

// lstat fills buf from path without following symlinks.
func lstat(path string, buf *statResult) error {
	var st syscall.Stat_t
	if err := syscall.Lstat(path, &st); err != nil {
		return err
	}
	fillStatResult(buf, &st)
	return nil
}

// statFollow fills buf from path, following a symlink target.
func statFollow(path string, buf *statResult) error {
	var st syscall.Stat_t
	if err := syscall.Stat(path, &st); err != nil {
		return err
	}
	fillStatResult(buf, &st)
	return nil
}

func fillStatResult(buf *statResult, st *syscall.Stat_t) {
	buf.isDir = st.Mode&syscall.S_IFMT == syscall.S_IFDIR
	buf.isSymlnk = st.Mode&syscall.S_IFMT == syscall.S_IFLNK
	buf.size = int64(st.Size)
	buf.blocks = int64(st.Blocks)
	buf.dev = uint64(st.Dev)
	buf.ino = uint64(st.Ino)
	buf.mode = uint32(st.Mode)
	buf.uid = st.Uid
	buf.gid = st.Gid
	buf.mtime = uint64(mtimeSec(st))
	buf.nlink = uint32(st.Nlink)
}

func opendirNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Readdirnames(-1)
}
