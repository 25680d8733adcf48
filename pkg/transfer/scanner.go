package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// localKind classifies a local path for uploading
type localKind int

const (
	kindSkip localKind = iota
	kindFile
	kindDir
)

// classify follows symlinks to files but skips symlinks to directories and
// broken links. Directory symlinks would otherwise allow cycles.
func classify(p string) (localKind, os.FileInfo, error) {
	info, err := os.Lstat(p)
	if err != nil {
		return kindSkip, nil, err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Stat(p)
		if err != nil || target.IsDir() {
			return kindSkip, nil, nil
		}
		info = target
	}

	switch {
	case info.IsDir():
		return kindDir, info, nil
	case info.Mode().IsRegular():
		return kindFile, info, nil
	default:
		return kindSkip, nil, nil
	}
}

// readDirSorted lists a local directory's children by name
func readDirSorted(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ScanLocal sums the sizes of all files under paths using the same rules as
// the upload walk.
func ScanLocal(paths []string) (uint64, error) {
	var total uint64
	var scan func(p string) error
	scan = func(p string) error {
		kind, info, err := classify(p)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", p, err)
		}
		switch kind {
		case kindFile:
			total += uint64(info.Size())
		case kindDir:
			names, err := readDirSorted(p)
			if err != nil {
				return fmt.Errorf("failed to read directory %s: %w", p, err)
			}
			for _, name := range names {
				if err := scan(filepath.Join(p, name)); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, p := range paths {
		if err := scan(p); err != nil {
			return 0, err
		}
	}
	return total, nil
}
