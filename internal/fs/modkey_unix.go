//go:build darwin || freebsd || linux

package fs

import (
	"time"

	"golang.org/x/sys/unix"
)

func modKey(path string) (ModKey, error) {
	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		return ModKey{}, err
	}
	mtime := stat.Mtim

	// A zeroed modification time means edits can't be detected
	if mtime.Sec == 0 && mtime.Nsec == 0 {
		return ModKey{}, modKeyUnusable
	}

	// Files touched within the safety gap can't be told apart from later edits
	now, err := unix.TimeToTimespec(time.Now())
	if err != nil {
		return ModKey{}, err
	}
	if safe := mtime.Sec + modKeySafetyGap; safe > now.Sec || (safe == now.Sec && mtime.Nsec > now.Nsec) {
		return ModKey{}, modKeyUnusable
	}

	return ModKey{
		inode:      stat.Ino,
		size:       stat.Size,
		mtime_sec:  int64(mtime.Sec),
		mtime_nsec: int64(mtime.Nsec),
		mode:       uint32(stat.Mode),
		uid:        stat.Uid,
	}, nil
}
