package journal

import (
	"os"
	"syscall"
)

// syncData flushes file data without forcing a metadata update.
func syncData(f *os.File) error {
	return syscall.Fdatasync(int(f.Fd()))
}
