//go:build !linux

package secret

import "os"

func defaultDir() string {
	return os.TempDir()
}
