//go:build windows

package httpcore

import "os"

// Windows os.FileInfo carries no stable inode; fall back to a zero
// component so the ETag formula still produces a well-formed value.
func platformInode(fi os.FileInfo) uint64 {
	return 0
}
