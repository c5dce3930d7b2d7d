package capture

import (
	"errors"
	"io/fs"
	"os"
	"strings"
)

// ReadControl inspects the operator control file. Presence requests a manual
// session; the first line of the file, if any, supplies the session name.
func ReadControl(path string) (name string, present bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return strings.TrimSpace(line), true, nil
}
