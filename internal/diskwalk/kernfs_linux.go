//go:build linux

package diskwalk

import "golang.org/x/sys/unix"

// Linux pseudo-filesystem magic numbers, from statfs(2) / linux/magic.h. A
// directory on one of these is excluded from disk-usage accounting: its
// reported size is synthetic, not real on-disk bytes.
var kernfsMagic = map[int64]bool{
	0x9fa0:     true, // PROC_SUPER_MAGIC
	0x62656572: true, // SYSFS_MAGIC
	0x01021994: true, // TMPFS_MAGIC
	0x858458f6: true, // RAMFS_MAGIC
	0x64626720: true, // DEBUGFS_MAGIC
	0x1cd1:     true, // DEVPTS_SUPER_MAGIC
	0x42494e4d: true, // BINFMTFS_MAGIC
	0x27e0eb:   true, // CGROUP_SUPER_MAGIC
	0x63677270: true, // CGROUP2_SUPER_MAGIC
	0x6e736673: true, // NSFS_MAGIC
	0x50495045: true, // PIPEFS_MAGIC
	0x9fa2:     true, // USBDEVICE_SUPER_MAGIC
	0x74726163: true, // TRACEFS_MAGIC
	0x73636673: true, // SECURITYFS_MAGIC
}

func isKernFS(path string) bool {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return false
	}
	return kernfsMagic[int64(st.Type)]
}
