package ndtiff

import (
	"os"
	"path/filepath"
)

// DisplaySettingsFile is the optional opaque settings blob written beside
// the dataset on finish and exposed verbatim on load.
const DisplaySettingsFile = "display_settings.txt"

func readDisplaySettings(dir string) []byte {
	data, err := os.ReadFile(filepath.Join(dir, DisplaySettingsFile))
	if err != nil {
		return nil
	}
	return data
}

func writeDisplaySettings(dir string, settings []byte) error {
	return os.WriteFile(filepath.Join(dir, DisplaySettingsFile), settings, 0o644)
}
