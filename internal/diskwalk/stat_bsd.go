//go:build darwin || freebsd || openbsd || netbsd

package diskwalk

import "syscall"

func mtimeSec(st *syscall.Stat_t) int64 { return st.Mtimespec.Sec }
