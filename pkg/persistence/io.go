package persistence

import (
	"os"

	"gopkg.in/yaml.v3"
)

// SaveSession writes a session with its messages to a YAML file.
func SaveSession(sessionFile string, session *Session) error {
	data, err := yaml.Marshal(session)
	if err != nil {
		return err
	}
	if err = os.WriteFile(sessionFile, data, 0640); err != nil {
		return err
	}
	return nil
}
