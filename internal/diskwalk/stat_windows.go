//go:build windows

package diskwalk

import "os"

// lstat on Windows falls back to os.Lstat's portable FileInfo: no device/
// inode identity is available, so same-filesystem and hard-link detection
// are unsupported on this platform (same-filesystem scanning and hlnkc
// always report their zero value).
func lstat(path string, buf *statResult) error {
	fi, err := os.Lstat(path)
	if err != nil {
		return err
	}
	fillFromFileInfo(buf, fi)
	return nil
}

func statFollow(path string, buf *statResult) error {
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	fillFromFileInfo(buf, fi)
	return nil
}

func fillFromFileInfo(buf *statResult, fi os.FileInfo) {
	*buf = statResult{}
	buf.isDir = fi.IsDir()
	buf.isSymlnk = fi.Mode()&os.ModeSymlink != 0
	buf.size = fi.Size()
	buf.blocks = (fi.Size() + 511) / 512
	buf.mode = uint32(fi.Mode())
	buf.mtime = uint64(fi.ModTime().Unix())
	buf.nlink = 1
}

func opendirNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Readdirnames(-1)
}
