//go:build darwin

package segsieve

import (
	"os"

	"golang.org/x/sys/unix"
)

// reserveFile sizes a table file and reserves its disk blocks with
// F_PREALLOCATE so that writes through the mapping cannot SIGBUS on a full disk.
func reserveFile(file *os.File, size int64) error {
	fst := unix.Fstore_t{
		Flags:   unix.F_ALLOCATEALL,
		Posmode: unix.F_PEOFPOSMODE,
		Length:  size,
	}
	// Preallocation failure is not fatal; ftruncate still sizes the file.
	_ = unix.FcntlFstore(file.Fd(), unix.F_PREALLOCATE, &fst)
	return unix.Ftruncate(int(file.Fd()), size)
}

// populateForWrite is a no-op: macOS has no MADV_POPULATE_WRITE.
func populateForWrite(data []byte) {}

// adviseSequential enables read-ahead on the table file. Best-effort.
func adviseSequential(file *os.File, length int64) {
	_, _ = unix.FcntlInt(file.Fd(), unix.F_RDAHEAD, 1)
}

// adviseWillNeed asks the kernel to read ahead the block index. Best-effort.
func adviseWillNeed(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, unix.MADV_WILLNEED)
}
