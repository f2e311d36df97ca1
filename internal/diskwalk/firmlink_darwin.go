//go:build darwin

package diskwalk

// hasFirmlinkDivergence would compare path's no-firmlink canonical form
// against path itself. Doing that requires the private F_GETPATH fcntl
// with FSOPT_NOFIRMLINK, which golang.org/x/sys/unix does not expose, so
// this always reports no divergence; FFFrmlnk is therefore never set on
// this build. ExcludeFirmlinks stays part of Options for interface parity
// with the original tool's flag set.
func hasFirmlinkDivergence(path string) bool { return false }
