package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/campuskit/faceroll/internal/privacy"
)

// systemIDFile is the name of the file holding the installation ID
// inside the config directory.
const systemIDFile = ".system_id"

// LoadOrCreateSystemID returns the persistent anonymous installation
// identifier, creating and saving a fresh one on first run or when the
// stored value is malformed.
func LoadOrCreateSystemID(configDir string) (string, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	idFile := filepath.Join(configDir, systemIDFile)
	if data, err := os.ReadFile(idFile); err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" && privacy.IsValidSystemID(id) {
			return id, nil
		}
	}

	id, err := privacy.GenerateSystemID()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(idFile, []byte(id), 0o644); err != nil {
		return "", fmt.Errorf("failed to save system ID: %w", err)
	}
	return id, nil
}
