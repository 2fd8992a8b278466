package config

const (
	// MaxFolderNameLength is the maximum length for folder and file names.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxFolderNameLength = 255

	DefaultPageSize  = 50
	MaxPageSize      = 100
	MaxSearchResults = 50
)
