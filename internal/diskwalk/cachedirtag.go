package diskwalk

import (
	"os"

	"github.com/sonroyaalmerol/indu/internal/cacheformat"
)

const cachedirTagFile = "CACHEDIR.TAG"

// hasCachedirTag reports whether dir contains a CACHEDIR.TAG file whose
// first bytes match the standard signature.
func hasCachedirTag(dir string) bool {
	f, err := os.Open(dir + string(os.PathSeparator) + cachedirTagFile)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, len(cacheformat.CachedirTagSignature))
	n, err := f.Read(buf)
	if err != nil || n != len(buf) {
		return false
	}
	return string(buf) == cacheformat.CachedirTagSignature
}
