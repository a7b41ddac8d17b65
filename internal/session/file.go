package session

import (
	"os"

	"github.com/kumralcem/croaker/internal/logging"
)

func removeQuiet(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warnf("removing temp audio file %s: %v", path, err)
	}
}
