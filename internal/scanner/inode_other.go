//go:build !unix

package scanner

import "os"

func inodeKey(info os.FileInfo) (visitKey, bool) {
	return visitKey{}, false
}
