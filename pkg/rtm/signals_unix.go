//go:build unix

package rtm

import (
	"os"

	"golang.org/x/sys/unix"
)

func stopSignals() []os.Signal {
	return []os.Signal{unix.SIGHUP, unix.SIGTERM, unix.SIGINT}
}
