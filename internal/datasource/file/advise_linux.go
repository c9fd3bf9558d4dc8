//go:build linux

package file

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseWholeFile hints that f will be read end to end soon. Errors are
// ignored; the hint is advisory.
func adviseWholeFile(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_WILLNEED)
}
