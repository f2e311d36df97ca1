//go:build linux

package diskwalk

import "syscall"

func mtimeSec(st *syscall.Stat_t) int64 { return st.Mtim.Sec }
