package tools

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Workspace confines file operations to a root directory. Paths given to it
// are relative to the root and may not escape it.
type Workspace struct {
	root string
}

// NewWorkspace creates a workspace rooted at root, or at the current
// directory when root is empty.
func NewWorkspace(root string) (*Workspace, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("workspace: %w", err)
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace: %s is not a directory", abs)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute root directory.
func (w *Workspace) Root() string { return w.root }

// PathError reports a path the workspace refuses to resolve.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%q %s", e.Path, e.Reason)
}

// Resolve joins rel onto the root. Absolute paths and paths containing ".."
// are rejected.
func (w *Workspace) Resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", &PathError{Path: rel, Reason: "is an absolute path"}
	}
	for _, part := range strings.FieldsFunc(rel, func(r rune) bool { return r == '/' || r == filepath.Separator }) {
		if part == ".." {
			return "", &PathError{Path: rel, Reason: "contains '..'"}
		}
	}
	return filepath.Join(w.root, rel), nil
}

// relative returns path relative to the root in slash form.
func (w *Workspace) relative(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// DirEntry describes one filesystem entry under the workspace.
type DirEntry struct {
	Path string // relative to the root
	Type string // "directory", "file", "symlink" or ""
	Size int64
}

func (e DirEntry) String() string {
	return fmt.Sprintf("%q\t%s\t%d", e.Path, e.Type, e.Size)
}

func (w *Workspace) entry(path string) (DirEntry, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return DirEntry{}, err
	}
	typ := ""
	switch mode := info.Mode(); {
	case mode.IsDir():
		typ = "directory"
	case mode.IsRegular():
		typ = "file"
	case mode&fs.ModeSymlink != 0:
		typ = "symlink"
	}
	return DirEntry{Path: w.relative(path), Type: typ, Size: info.Size()}, nil
}

// ReadFile reads at most maxBytes of the file at rel. Content that is not
// valid UTF-8 is returned as a hex dump.
func (w *Workspace) ReadFile(rel string, maxBytes int) (string, error) {
	path, err := w.Resolve(rel)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", &PathError{Path: rel, Reason: "is a directory"}
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var r io.Reader = f
	if maxBytes > 0 {
		r = io.LimitReader(f, int64(maxBytes))
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if maxBytes > 0 && len(data) == maxBytes {
		data = trimPartialRune(data)
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	return hex.Dump(data), nil
}

// trimPartialRune drops an incomplete UTF-8 sequence left by a byte cutoff.
func trimPartialRune(data []byte) []byte {
	for i := 1; i < utf8.UTFMax && i <= len(data); i++ {
		b := data[len(data)-i]
		if !utf8.RuneStart(b) {
			continue
		}
		if !utf8.FullRune(data[len(data)-i:]) {
			return data[:len(data)-i]
		}
		break
	}
	return data
}

// ListDirectory lists the entries directly inside rel.
func (w *Workspace) ListDirectory(rel string) ([]DirEntry, error) {
	path, err := w.Resolve(rel)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return nil, &PathError{Path: rel, Reason: "is not a directory"}
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	out := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		de, err := w.entry(filepath.Join(path, e.Name()))
		if err != nil {
			continue
		}
		out = append(out, de)
	}
	return out, nil
}

// Find walks rel and returns entries whose base name matches the glob
// pattern. The directory itself is included when its name matches.
func (w *Workspace) Find(ctx context.Context, rel, pattern string) ([]DirEntry, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	path, err := w.Resolve(rel)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return nil, &PathError{Path: rel, Reason: "is not a directory"}
	}

	var out []DirEntry
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if ok, _ := filepath.Match(pattern, d.Name()); !ok {
			return nil
		}
		if de, err := w.entry(p); err == nil {
			out = append(out, de)
		}
		return nil
	})
	return out, err
}

// GrepOptions configures Grep.
type GrepOptions struct {
	MaxColumns int // longer matching lines are elided; 0 = no limit
	MaxBytes   int // output cap; 0 = no limit
}

// Grep searches regular files under rel for lines matching the regular
// expression pattern. Each match is reported as path:line:column:text.
// Files containing a NUL byte are treated as binary and skipped.
func (w *Workspace) Grep(ctx context.Context, rel, pattern string, opts GrepOptions) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	path, err := w.Resolve(rel)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return "", &PathError{Path: rel, Reason: "is not a directory"}
	}

	var out strings.Builder
	errFull := errors.New("output full")
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil || bytes.IndexByte(data, 0) >= 0 {
			return nil
		}

		name := w.relative(p)
		for i, line := range strings.Split(string(data), "\n") {
			locs := re.FindAllStringIndex(line, -1)
			if len(locs) == 0 {
				continue
			}
			text := line
			if opts.MaxColumns > 0 && len(line) > opts.MaxColumns {
				text = fmt.Sprintf("[Omitted long line with %d matches]", len(locs))
			}
			fmt.Fprintf(&out, "%s:%d:%d:%s\n", name, i+1, locs[0][0]+1, text)
			if opts.MaxBytes > 0 && out.Len() >= opts.MaxBytes {
				return errFull
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFull) {
		return "", err
	}

	result := out.String()
	if opts.MaxBytes > 0 && len(result) > opts.MaxBytes {
		result = result[:opts.MaxBytes]
	}
	return result, nil
}
