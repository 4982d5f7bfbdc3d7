// Package sink routes matched records to their destination: a live
// output stream, one shared file, or one file per rule name.
package sink

import (
	"io"
	"os"
	"path/filepath"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/afero"

	sifterr "github.com/rulesift/rulesift/pkg/errors"
)

// Sink appends the serialized form of a matched record, tagged with the
// name of the rule it matched, to the correct destination.
type Sink interface {
	Write(record interface{}, ruleName string) error
	Close() error
}

// writeOptions keeps serialized records deterministic
var writeOptions = oj.Options{Sort: true}

func serialize(record interface{}) []byte {
	return append([]byte(oj.JSON(record, &writeOptions)), '\n')
}

// Stream writes every match to a live output stream regardless of the
// rule that produced it
type Stream struct {
	w io.Writer
}

// NewStream returns a Sink over a live stream, typically stdout
func NewStream(w io.Writer) *Stream {
	return &Stream{w: w}
}

// Write serializes the record and appends it as one line
func (s *Stream) Write(record interface{}, ruleName string) error {
	if _, err := s.w.Write(serialize(record)); err != nil {
		return sifterr.Wrap(err, sifterr.ErrMatchWrite, "failed to write match")
	}
	return nil
}

// Close implements Sink; a live stream is not ours to close
func (s *Stream) Close() error { return nil }

type entry struct {
	name string
	file afero.File
}

// FileSet routes matches to open output files. A single entry with an
// empty name is a shared file taking every match; multiple entries route
// each match only to the file named after the matching rule.
type FileSet struct {
	entries []entry
}

// OpenFileSet opens the output destination eagerly, before any record is
// processed. If path is an existing directory, one file per rule name is
// created inside it; otherwise a single file is created at path. With
// overwrite the files are truncated or created, without it an existing
// target fails startup.
func OpenFileSet(fsys afero.Fs, path string, ruleNames []string, overwrite bool) (*FileSet, error) {
	isDir, err := afero.DirExists(fsys, path)
	if err != nil {
		return nil, sifterr.Wrapf(err, sifterr.ErrOutputCreate, "failed to inspect output path %s", path)
	}

	fs := &FileSet{}
	if isDir {
		for _, name := range ruleNames {
			f, err := openOutputFile(fsys, filepath.Join(path, name), overwrite)
			if err != nil {
				fs.closeAll()
				return nil, err
			}
			fs.entries = append(fs.entries, entry{name: name, file: f})
		}
	} else {
		f, err := openOutputFile(fsys, path, overwrite)
		if err != nil {
			return nil, err
		}
		fs.entries = append(fs.entries, entry{name: "", file: f})
	}
	return fs, nil
}

// openOutputFile applies the create-if-overwrite-else-create-new policy
// and classifies failures so they are user-diagnosable
func openOutputFile(fsys afero.Fs, path string, overwrite bool) (afero.File, error) {
	// "." is the working directory and always present
	if parent := filepath.Dir(path); parent != "." {
		info, err := fsys.Stat(parent)
		if err != nil {
			return nil, sifterr.Newf(sifterr.ErrOutputParentMissing, "parent directory of output file %s does not exist", path)
		}
		if !info.IsDir() {
			return nil, sifterr.Newf(sifterr.ErrOutputCreate, "parent path of output file %s is not a directory", path)
		}
	}

	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}

	f, err := fsys.OpenFile(path, flags, 0644)
	if err != nil {
		if !overwrite {
			if exists, _ := afero.Exists(fsys, path); exists {
				return nil, sifterr.Newf(sifterr.ErrOutputExists, "output file %s already exists (use overwrite to truncate)", path)
			}
		}
		return nil, sifterr.Wrapf(err, sifterr.ErrOutputCreate, "failed to create output file %s", path)
	}
	return f, nil
}

// Write appends the record to the destination associated with ruleName.
// A single shared entry takes every match; in directory mode a missing
// entry for the rule is an internal invariant violation.
func (fs *FileSet) Write(record interface{}, ruleName string) error {
	if len(fs.entries) == 1 && fs.entries[0].name == "" {
		return writeEntry(fs.entries[0], record)
	}
	for _, e := range fs.entries {
		if e.name == ruleName {
			return writeEntry(e, record)
		}
	}
	return sifterr.Newf(sifterr.ErrInternal, "no output file for rule %s", ruleName)
}

func writeEntry(e entry, record interface{}) error {
	if _, err := e.file.Write(serialize(record)); err != nil {
		return sifterr.Wrapf(err, sifterr.ErrMatchWrite, "failed to write match for rule %s", e.name)
	}
	return nil
}

func (fs *FileSet) closeAll() {
	for _, e := range fs.entries {
		_ = e.file.Close()
	}
	fs.entries = nil
}

// Close closes every open output file
func (fs *FileSet) Close() error {
	var firstErr error
	for _, e := range fs.entries {
		if err := e.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	fs.entries = nil
	return firstErr
}
