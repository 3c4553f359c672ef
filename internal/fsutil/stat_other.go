//go:build !linux

package fsutil

import (
	"os"
	"runtime"
)

// On platforms without an easily portable ctime/atime, fall back to mtime
// for both. Permissions are the mode's permission bits, reported as zero
// on Windows, which has no POSIX permission bits.
func infoFromFileInfo(fi os.FileInfo) Info {
	modified := fi.ModTime().Unix()
	perm := uint32(fi.Mode().Perm())
	if runtime.GOOS == "windows" {
		perm = 0
	}

	return Info{
		Times: Times{
			Modified: modified,
			Accessed: modified,
			Changed:  modified,
		},
		Size:        uint64(fi.Size()),
		Permissions: perm,
	}
}
