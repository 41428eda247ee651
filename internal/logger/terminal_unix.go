//go:build darwin || linux

package logger

import (
	"os"

	"golang.org/x/sys/unix"
)

const SupportsColorEscapes = true

// GetTerminalInfo asks the kernel for the window size. The request fails
// for anything that isn't a terminal, which is how pipes and files are told
// apart from a TTY.
func GetTerminalInfo(file *os.File) (info TerminalInfo) {
	w, err := unix.IoctlGetWinsize(int(file.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return
	}
	info.IsTTY = true
	info.Width = int(w.Col)

	// See https://no-color.org/
	_, noColor := os.LookupEnv("NO_COLOR")
	info.UseColorEscapes = !noColor
	return
}
