// Package enum turns command-line file arguments into the list of files to scan.
package enum

// Config for path expansion.
type Config struct {
	// Paths are files, directories or glob patterns, in the order given.
	Paths []string

	// Recursive descends into directories. Without it a directory is passed
	// through as-is and fails to open when scanned.
	Recursive bool

	// IncludeHidden includes hidden files/directories (starting with .) found
	// while recursing. Paths named explicitly are always kept.
	IncludeHidden bool

	// MaxFileSize is the maximum file size to process (0 = no limit).
	MaxFileSize int64

	// FollowSymlinks includes symlinked files found while recursing.
	// Symlinked directories are never descended into.
	FollowSymlinks bool

	// NoIgnore disables .gitignore rules at the top of each recursed directory.
	NoIgnore bool

	// Sort orders the final list lexically. Otherwise argument order is kept.
	Sort bool
}
