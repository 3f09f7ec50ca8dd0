package enum

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// ExpandPaths expands globs, recurses into directories when configured and
// returns the deduplicated file list. Literal paths that do not exist are
// kept so that the scan reports them as open errors.
func ExpandPaths(ctx context.Context, config Config) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		key := filepath.Clean(path)
		if seen[key] {
			return
		}
		seen[key] = true
		files = append(files, path)
	}

	for _, arg := range config.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		matches, err := expandGlob(arg)
		if err != nil {
			return nil, err
		}

		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil || !info.IsDir() || !config.Recursive {
				add(path)
				continue
			}
			if err := walkDir(ctx, path, config, add); err != nil {
				return nil, err
			}
		}
	}

	if config.Sort {
		sort.Strings(files)
	}
	return files, nil
}

// expandGlob returns the matches of a glob pattern, or the argument itself
// when it has no glob characters or matches nothing.
func expandGlob(pattern string) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[") {
		return []string{pattern}, nil
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return []string{pattern}, nil
	}
	return matches, nil
}

// walkDir adds the eligible files below root in lexical order.
func walkDir(ctx context.Context, root string, config Config, add func(string)) error {
	// Load .gitignore patterns if present
	var ignore *gitignore.GitIgnore
	if !config.NoIgnore {
		gitignorePath := filepath.Join(root, ".gitignore")
		if _, err := os.Stat(gitignorePath); err == nil {
			ignore, _ = gitignore.CompileIgnoreFile(gitignorePath)
		}
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries below the root are skipped, like grep -rs.
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if path == root {
			return nil
		}

		if !config.IncludeHidden && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if ignore != nil {
			relPath, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if ignore.MatchesPath(relPath) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			if !config.FollowSymlinks {
				return nil
			}
			target, err := os.Stat(path)
			if err != nil || !target.Mode().IsRegular() {
				return nil
			}
			info = target
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		if config.MaxFileSize > 0 && info.Size() > config.MaxFileSize {
			return nil
		}

		add(path)
		return nil
	})
}

// ReadPathList reads one path per line, as piped from find or similar.
// Surrounding whitespace is trimmed and blank lines are skipped.
func ReadPathList(r io.Reader) ([]string, error) {
	var paths []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		paths = append(paths, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read path list: %w", err)
	}
	return paths, nil
}

// isHidden checks if a filename is hidden (starts with .).
// The special entries "." and ".." are NOT considered hidden.
func isHidden(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}
