//go:build !darwin

package diskwalk

func hasFirmlinkDivergence(path string) bool { return false }
