//go:build linux

package segsieve

import (
	"os"

	"golang.org/x/sys/unix"
)

// madvPopulateWrite is MADV_POPULATE_WRITE, added in Linux 5.14.
// Older kernels return EINVAL, which is ignored.
const madvPopulateWrite = 23

// reserveFile sizes a table file and reserves its disk blocks so that writes
// through the mapping cannot SIGBUS on a full disk.
func reserveFile(file *os.File, size int64) error {
	fd := int(file.Fd())
	// fallocate is unsupported on some filesystems (NFS, tmpfs on old
	// kernels); the ftruncate below still sizes the file.
	_ = unix.Fallocate(fd, 0, 0, size)
	return unix.Ftruncate(fd, size)
}

// populateForWrite prefaults a freshly mapped prime region. Best-effort.
func populateForWrite(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, madvPopulateWrite)
}

// adviseSequential tells the kernel a table file will be scanned front to
// back (Verify, Range). Best-effort.
func adviseSequential(file *os.File, length int64) {
	_ = unix.Fadvise(int(file.Fd()), 0, length, unix.FADV_SEQUENTIAL)
}

// adviseWillNeed asks the kernel to read ahead the block index, which every
// lookup touches. Best-effort.
func adviseWillNeed(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, unix.MADV_WILLNEED)
}
