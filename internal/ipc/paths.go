package ipc

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// SocketFileName is komorebi's command socket inside its data directory.
	SocketFileName = "komorebi.sock"
	// DefaultSubscriberName is the socket komorebi pushes notifications to.
	DefaultSubscriberName = "komoffset.sock"

	dirEnv = "KOMOFFSET_KOMOREBI_DIR"
)

// DataDir returns komorebi's data directory: the KOMOFFSET_KOMOREBI_DIR
// override, else %LOCALAPPDATA%\komorebi.
func DataDir() (string, error) {
	if env := os.Getenv(dirEnv); env != "" {
		return env, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate komorebi data dir: %w", err)
	}
	return filepath.Join(base, "komorebi"), nil
}
