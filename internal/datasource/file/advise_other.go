//go:build !linux

package file

import "os"

func adviseWholeFile(*os.File) {}
