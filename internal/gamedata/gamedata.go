// Package gamedata extracts unit blueprint files from a game install:
// either a package archive (.scd, a renamed zip) or a directory tree.
// Extracted files are written flat into the destination directory.
package gamedata

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	unitSuffix      = "_unit.bp"
	maxExtractFiles = 10000
)

// ResolvePath maps an install root onto its gamedata payload: a direct
// file is used as-is, a directory is probed for gamedata.scd or gamedata/.
func ResolvePath(path string) string {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return path
	}
	if scd := filepath.Join(path, "gamedata.scd"); isFile(scd) {
		return scd
	}
	if sub := filepath.Join(path, "gamedata"); isDir(sub) {
		return sub
	}
	return path
}

// Extract writes every *_unit.bp under the source (archive or directory)
// into outDir with flat filenames. Returns the number of files written.
func Extract(src, outDir string) (int, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}
	info, err := os.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("gamedata path: %w", err)
	}
	if !info.IsDir() {
		ext := strings.ToLower(filepath.Ext(src))
		if ext != ".scd" && ext != ".zip" {
			return 0, fmt.Errorf("gamedata path is a file but not .scd or .zip: %s", src)
		}
		return extractArchive(src, outDir)
	}
	unitsRoot, err := findUnitsRoot(src)
	if err != nil {
		return 0, err
	}
	return copyTree(unitsRoot, outDir)
}

func findUnitsRoot(dir string) (string, error) {
	if u := filepath.Join(dir, "units"); isDir(u) {
		return u, nil
	}
	if u := filepath.Join(dir, "gamedata", "units"); isDir(u) {
		return u, nil
	}
	if filepath.Base(dir) == "units" {
		return dir, nil
	}
	return "", fmt.Errorf("no units folder found under %s (expected gamedata/units, a units path, or an .scd/.zip archive)", dir)
}

func extractArchive(path, outDir string) (int, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return 0, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer r.Close()
	count := 0
	for _, entry := range r.File {
		if count >= maxExtractFiles {
			break
		}
		name := entry.Name
		if !strings.HasSuffix(strings.ToLower(name), unitSuffix) {
			continue
		}
		// Flat output: archive paths are untrusted, so only the base
		// name ever reaches the filesystem.
		if strings.Contains(name, "__MACOSX") || strings.ContainsRune(name, '\\') {
			continue
		}
		base := filepath.Base(name)
		if err := writeEntry(entry, filepath.Join(outDir, base)); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func writeEntry(entry *zip.File, outPath string) error {
	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %s: %w", entry.Name, err)
	}
	defer rc.Close()
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("extract %s: %w", entry.Name, err)
	}
	return nil
}

func copyTree(root, outDir string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if count >= maxExtractFiles {
			return filepath.SkipAll
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), unitSuffix) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := os.WriteFile(filepath.Join(outDir, d.Name()), data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", d.Name(), err)
		}
		count++
		return nil
	})
	return count, err
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
