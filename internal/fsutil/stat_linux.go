//go:build linux

package fsutil

import (
	"os"
	"syscall"
)

func infoFromFileInfo(fi os.FileInfo) Info {
	modified := fi.ModTime().Unix()
	accessed := modified
	changed := modified

	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		accessed = st.Atim.Sec
		changed = st.Ctim.Sec
	}

	return Info{
		Times: Times{
			Modified: modified,
			Accessed: accessed,
			Changed:  changed,
		},
		Size:        uint64(fi.Size()),
		Permissions: uint32(fi.Mode().Perm()),
	}
}
