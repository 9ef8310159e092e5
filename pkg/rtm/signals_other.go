//go:build !unix

package rtm

import "os"

// No process signals are wired outside POSIX hosts.
func stopSignals() []os.Signal { return nil }
