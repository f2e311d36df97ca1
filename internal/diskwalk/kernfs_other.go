//go:build !linux

package diskwalk

func isKernFS(path string) bool { return false }
