package revision

import (
	"encoding/json"
	"os"

	"github.com/spf13/afero"

	"github.com/thisisharsh7/epicenter-sub010/errors"
)

// writeSnapshot encodes file as pretty-printed JSON and writes it to path,
// the same "prefer stdlib JSON over inventing a binary framing" choice the
// persistence extension makes for its own mirror file.
func writeSnapshot(fs afero.Fs, path string, file snapshotFile) error {
	b, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return errors.Wrap("revision: failed to marshal snapshot", err)
	}
	return afero.WriteFile(fs, path, b, 0o644)
}

// readSnapshot reads and decodes path's snapshotFile envelope.
func readSnapshot(fs afero.Fs, path string) (snapshotFile, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return snapshotFile{}, errors.Wrap("revision snapshot not found", errors.ErrSnapshotNotFound)
		}
		return snapshotFile{}, errors.Wrap("revision: failed to read snapshot", err)
	}
	var file snapshotFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return snapshotFile{}, errors.Wrap("revision: snapshot file is not valid JSON", err)
	}
	return file, nil
}
