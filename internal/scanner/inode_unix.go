//go:build unix

package scanner

import (
	"os"
	"syscall"
)

func inodeKey(info os.FileInfo) (visitKey, bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return visitKey{}, false
	}
	return visitKey{dev: uint64(stat.Dev), ino: stat.Ino}, true
}
