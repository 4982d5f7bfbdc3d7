// Package source produces decoded JSON records one line at a time, from
// a live stream or from a chain of input files.
package source

import (
	"bufio"
	"io"
	"strings"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/afero"

	sifterr "github.com/rulesift/rulesift/pkg/errors"
)

// Source yields one record per call. Exhaustion is signaled by io.EOF;
// any other error is a per-item failure and the caller may keep pulling.
// A Source is consumed exactly once and is not restartable.
type Source interface {
	Next() (interface{}, error)
	Close() error
}

// decodeLine trims the trailing line terminator and decodes the rest as
// a single JSON value. Blank lines are decoded too, and fail.
func decodeLine(line string) (interface{}, error) {
	trimmed := strings.TrimRight(line, "\r\n")
	record, err := oj.Parse([]byte(trimmed))
	if err != nil {
		return nil, sifterr.Wrapf(err, sifterr.ErrRecordDecode, "failed to decode record %q", trimmed)
	}
	return record, nil
}

// Stream reads records from a live input stream
type Stream struct {
	reader *bufio.Reader
}

// NewStream returns a Source over a live stream, typically stdin
func NewStream(r io.Reader) *Stream {
	return &Stream{reader: bufio.NewReader(r)}
}

// Next reads and decodes the next line. Read failures are yielded as
// items and reading continues on the following call.
func (s *Stream) Next() (interface{}, error) {
	line, err := s.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, sifterr.Wrap(err, sifterr.ErrInputRead, "failed to read input line")
	}
	if line == "" {
		return nil, io.EOF
	}
	return decodeLine(line)
}

// Close implements Source; a live stream is not ours to close
func (s *Stream) Close() error { return nil }

// FileChain reads records from an ordered list of files, consumed
// back-to-front: the most recently supplied path is processed first.
// At most one file is open at a time.
type FileChain struct {
	fsys    afero.Fs
	pending []string
	current afero.File
	reader  *bufio.Reader
}

// NewFileChain opens the last of paths as the initial current file and
// keeps the rest pending. Failure to open that initial file is returned
// as an error and should be treated as fatal by the caller.
func NewFileChain(fsys afero.Fs, paths []string) (*FileChain, error) {
	if len(paths) == 0 {
		return nil, sifterr.New(sifterr.ErrInputOpen, "no input paths supplied")
	}
	pending := make([]string, len(paths))
	copy(pending, paths)

	chain := &FileChain{fsys: fsys, pending: pending[:len(pending)-1]}
	initial := pending[len(pending)-1]
	if err := chain.open(initial); err != nil {
		return nil, err
	}
	return chain, nil
}

func (c *FileChain) open(path string) error {
	f, err := c.fsys.Open(path)
	if err != nil {
		return sifterr.Wrapf(err, sifterr.ErrInputOpen, "failed to open input file %s", path)
	}
	c.current = f
	c.reader = bufio.NewReader(f)
	return nil
}

// Next reads the next line from the current file. End of file, or a
// read failure on the current file, advances to the next pending path.
// An open failure on that next path is yielded once as an item; the
// call after that moves on to the path after it.
func (c *FileChain) Next() (interface{}, error) {
	for {
		if c.reader != nil {
			line, err := c.reader.ReadString('\n')
			if err == nil {
				return decodeLine(line)
			}
			if err == io.EOF && line != "" {
				// Final line without a terminator still counts
				c.closeCurrent()
				return decodeLine(line)
			}
			c.closeCurrent()
		}

		if len(c.pending) == 0 {
			return nil, io.EOF
		}
		next := c.pending[len(c.pending)-1]
		c.pending = c.pending[:len(c.pending)-1]
		if err := c.open(next); err != nil {
			return nil, err
		}
	}
}

func (c *FileChain) closeCurrent() {
	if c.current != nil {
		_ = c.current.Close()
	}
	c.current = nil
	c.reader = nil
}

// Close releases the current file, if any
func (c *FileChain) Close() error {
	var err error
	if c.current != nil {
		err = c.current.Close()
	}
	c.current = nil
	c.reader = nil
	return err
}
