package archive

import "errors"

var (
	// ErrNoSaveDirectory indicates the logger settings carry no save directory.
	ErrNoSaveDirectory = errors.New("no save directory configured")
	// ErrSaveDirectoryMissing indicates the configured save directory does not exist.
	ErrSaveDirectoryMissing = errors.New("save directory does not exist")
	// ErrSettingsUnavailable indicates no settings repository is configured.
	ErrSettingsUnavailable = errors.New("logger settings unavailable")
)
