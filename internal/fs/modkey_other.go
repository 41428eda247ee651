//go:build !darwin && !freebsd && !linux

package fs

import (
	"os"
	"time"
)

func modKey(path string) (ModKey, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ModKey{}, err
	}

	// A zeroed modification time means edits can't be detected
	mtime := info.ModTime()
	if mtime.IsZero() || mtime.Unix() == 0 {
		return ModKey{}, modKeyUnusable
	}

	// Files touched within the safety gap can't be told apart from later edits
	if mtime.Add(modKeySafetyGap * time.Second).After(time.Now()) {
		return ModKey{}, modKeyUnusable
	}

	return ModKey{
		size:       info.Size(),
		mtime_sec:  mtime.Unix(),
		mtime_nsec: int64(mtime.Nanosecond()),
		mode:       uint32(info.Mode()),
	}, nil
}
