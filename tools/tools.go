// Package tools provides file-system capabilities confined to a workspace
// root: read_file, list_dir, find_file and grep_files.
//
// Every problem the model can fix by itself, such as a missing file or a bad
// pattern, is reported as result text so the conversation can carry on.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/martinemde/agenty/agentloop"
)

const (
	// ReadFileLimit is the number of bytes read_file returns at most.
	ReadFileLimit = 8192
	// GrepOutputLimit caps the output of grep_files.
	GrepOutputLimit = 16384
	// GrepMaxColumns elides matching lines longer than this.
	GrepMaxColumns = 80
)

// ReadFileArgs are the arguments of read_file.
type ReadFileArgs struct {
	FilePath string `json:"file_path" jsonschema:"description=Path of the file relative to the root directory" validate:"required"`
}

// ListDirArgs are the arguments of list_dir.
type ListDirArgs struct {
	RelativePath string `json:"relative_path" jsonschema:"description=Directory relative to the root directory; use . for the root" validate:"required"`
}

// FindFileArgs are the arguments of find_file.
type FindFileArgs struct {
	Directory       string `json:"directory" jsonschema:"description=Directory to search relative to the root directory" validate:"required"`
	FileNamePattern string `json:"file_name_pattern" jsonschema:"description=Glob pattern matched against file names such as *.c" validate:"required"`
}

// GrepFilesArgs are the arguments of grep_files.
type GrepFilesArgs struct {
	Directory string `json:"directory" jsonschema:"description=Directory to search relative to the root directory" validate:"required"`
	Pattern   string `json:"pattern" jsonschema:"description=Regular expression to search for" validate:"required"`
}

// All returns every capability in this package bound to ws.
func All(ws *Workspace) []agentloop.Capability {
	return []agentloop.Capability{
		ReadFile(ws),
		ListDir(ws),
		FindFile(ws),
		GrepFiles(ws),
	}
}

// ReadFile returns the read_file capability.
func ReadFile(ws *Workspace) *agentloop.TypedCapability[ReadFileArgs] {
	return agentloop.NewCapability("read_file",
		"Read file contents of the path `file_path`. The result will be hexdump if the file is a binary file.",
		func(_ context.Context, args ReadFileArgs) (string, error) {
			content, err := ws.ReadFile(args.FilePath, ReadFileLimit)
			if err != nil {
				return fmt.Sprintf("Fail to read %q due to %v", args.FilePath, err), nil
			}
			return content, nil
		})
}

// ListDir returns the list_dir capability.
func ListDir(ws *Workspace) *agentloop.TypedCapability[ListDirArgs] {
	return agentloop.NewCapability("list_dir",
		"List a given directory entries. '.' is allowed to list entries of the root directory but '..' is not allowed to avoid path traversal. "+
			"Absolute path is not allowed and you shall always use relative path to the root directory.",
		func(_ context.Context, args ListDirArgs) (string, error) {
			entries, err := ws.ListDirectory(args.RelativePath)
			if err != nil {
				return err.Error(), nil
			}
			return fmt.Sprintf("The contents of folder %q is:\nname\ttype\tsize\n%s",
				args.RelativePath, joinEntries(entries)), nil
		})
}

// FindFile returns the find_file capability.
func FindFile(ws *Workspace) *agentloop.TypedCapability[FindFileArgs] {
	return agentloop.NewCapability("find_file",
		"Find files with names having the given glob pattern under the given directory. For example, use '*.c' to find all C source files. "+
			"For directory, note '.' is allowed to list entries of the root directory but '..' is not allowed to avoid path traversal. "+
			"Absolute path is not allowed and you shall always use relative path to the root directory.",
		func(ctx context.Context, args FindFileArgs) (string, error) {
			entries, err := ws.Find(ctx, args.Directory, args.FileNamePattern)
			if err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				return err.Error(), nil
			}
			return fmt.Sprintf("The files found under directory %q with given pattern %s are:\n%s",
				args.Directory, args.FileNamePattern, joinEntries(entries)), nil
		})
}

// GrepFiles returns the grep_files capability.
func GrepFiles(ws *Workspace) *agentloop.TypedCapability[GrepFilesArgs] {
	return agentloop.NewCapability("grep_files",
		"Grep files in the given path with pattern. The path should be always relative path and '.' is allowed while '..' is not allowed. "+
			"Note the pattern is in regex grammar not glob grammar.",
		func(ctx context.Context, args GrepFilesArgs) (string, error) {
			out, err := ws.Grep(ctx, args.Directory, args.Pattern, GrepOptions{
				MaxColumns: GrepMaxColumns,
				MaxBytes:   GrepOutputLimit,
			})
			if err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				return err.Error(), nil
			}
			if out == "" {
				return fmt.Sprintf("No matches for %s under %q", args.Pattern, args.Directory), nil
			}
			return out, nil
		})
}

func joinEntries(entries []DirEntry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.String()
	}
	return strings.Join(lines, "\n")
}
