package walk

import (
	"strings"

	"github.com/mit-pdos/blockfs/common"
	"github.com/mit-pdos/blockfs/dirent"
)

// Split breaks p into names. Empty components vanish, so leading, trailing
// and repeated slashes collapse; at most MAXPATHLEN components are kept and
// each is truncated by dirent.MkName.
func Split(p string) []dirent.Name {
	var names []dirent.Name
	for _, c := range strings.Split(p, "/") {
		if c == "" {
			continue
		}
		if len(names) == common.MAXPATHLEN {
			break
		}
		names = append(names, dirent.MkName(c))
	}
	return names
}

// SameParent reports whether a and b name entries of the same directory:
// equal length, equal in every component but the last.
func SameParent(a, b []dirent.Name) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i+1 < len(a); i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
