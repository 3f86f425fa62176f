//go:build !linux && !darwin

package segsieve

import "os"

// reserveFile sizes a table file. Disk blocks may not be reserved on every
// filesystem, so a full disk can still fault during writes.
func reserveFile(file *os.File, size int64) error {
	return file.Truncate(size)
}

func populateForWrite(data []byte) {}

func adviseSequential(file *os.File, length int64) {}

func adviseWillNeed(data []byte) {}
