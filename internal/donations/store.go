package donations

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// Store reads and rewrites a delimited donation records file. It keeps no
// state between calls: every operation opens the file fresh and releases
// its handles before returning.
type Store struct {
	fs     FileSystem
	logger *slog.Logger
}

// NewStore constructs a Store backed by the OS filesystem.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		fs:     OSFileSystem{},
		logger: logger,
	}
}

// SetFileSystem overrides the filesystem implementation used for file access.
func (s *Store) SetFileSystem(fs FileSystem) {
	if fs == nil {
		s.fs = OSFileSystem{}
		return
	}
	s.fs = fs
}

// Display returns every line of the file in order. An empty file yields no
// lines.
func (s *Store) Display(path string) ([]string, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, readError(err)
	}
	defer f.Close()

	if info, statErr := f.Stat(); statErr == nil {
		s.loggerOrDefault().Debug("Reading records file", "path", path, "size", humanize.Bytes(uint64(info.Size())))
	}

	var lines []string
	scanner := newLineScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, readError(fmt.Errorf("scan %s: %w", path, err))
	}
	return lines, nil
}

// Append writes rec as a new line at the end of the file. A line separator
// is emitted first only when the existing content does not already end with
// one, so neither empty files nor freshly rewritten files gain a blank line.
func (s *Store) Append(path string, rec Record) error {
	info, err := s.fs.Stat(path)
	if err != nil {
		return readError(err)
	}

	f, err := s.fs.OpenFile(path, os.O_RDWR|os.O_APPEND, info.Mode().Perm())
	if err != nil {
		return writeError(err)
	}
	defer f.Close()

	needsSeparator, err := lacksTrailingNewline(f, info.Size())
	if err != nil {
		return readError(fmt.Errorf("read tail of %s: %w", path, err))
	}

	var b strings.Builder
	if needsSeparator {
		b.WriteByte('\n')
	}
	b.WriteString(rec.String())
	b.WriteByte('\n')

	if _, err := io.WriteString(f, b.String()); err != nil {
		return writeError(err)
	}
	if err := f.Close(); err != nil {
		return writeError(err)
	}

	s.loggerOrDefault().Debug("Appended record", "path", path, "id", rec.ID)
	return nil
}

// Delete rewrites the file without any record whose id equals id and
// atomically replaces the original. It returns the number of records
// removed. A line with a non-integer id aborts the operation with ErrFormat
// and leaves the original untouched. Blank lines are kept as they are; older
// appends to an empty file left one at the top.
func (s *Store) Delete(path string, id int) (int, error) {
	src, err := s.fs.Open(path)
	if err != nil {
		return 0, readError(err)
	}
	defer src.Close()

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := s.fs.CreateTemp(dir, base+".*.tmp")
	if err != nil {
		return 0, writeError(fmt.Errorf("create temp file: %w", err))
	}
	tmpPath := tmp.Name()

	removed, err := copyRetained(src, tmp, id)
	if err == nil {
		err = preserveMode(src, tmp)
	}
	if err == nil {
		if syncErr := tmp.Sync(); syncErr != nil {
			err = writeError(syncErr)
		}
	}
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = writeError(closeErr)
	}
	src.Close()

	if err != nil {
		s.discardTemp(tmpPath)
		return 0, err
	}

	if err := s.fs.Rename(tmpPath, path); err != nil {
		s.discardTemp(tmpPath)
		return 0, writeError(fmt.Errorf("replace %s: %w", path, err))
	}

	s.loggerOrDefault().Debug("Deleted records", "path", path, "id", id, "removed", removed)
	return removed, nil
}

func (s *Store) discardTemp(path string) {
	if err := s.fs.Remove(path); err != nil {
		s.loggerOrDefault().Warn("Failed to remove temporary file", "path", path, "error", err)
	}
}

// copyRetained streams every line of src whose id differs from id into dst,
// each followed by a newline, and reports how many lines matched.
func copyRetained(src io.Reader, dst io.Writer, id int) (int, error) {
	w := bufio.NewWriter(dst)
	scanner := newLineScanner(src)

	removed := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) != "" {
			recID, err := parseID(line)
			if err != nil {
				return 0, fmt.Errorf("%w: line %d: %w", ErrFormat, lineNo, err)
			}
			if recID == id {
				removed++
				continue
			}
		}
		if _, err := w.WriteString(line); err != nil {
			return 0, writeError(err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return 0, writeError(err)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, readError(err)
	}
	if err := w.Flush(); err != nil {
		return 0, writeError(err)
	}
	return removed, nil
}

func preserveMode(src, dst File) error {
	info, err := src.Stat()
	if err != nil {
		return readError(err)
	}
	if err := dst.Chmod(info.Mode().Perm()); err != nil {
		return writeError(err)
	}
	return nil
}

func lacksTrailingNewline(f io.ReaderAt, size int64) (bool, error) {
	if size == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	// Records are short, but hand-edited files can contain long lines.
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	return scanner
}

func (s *Store) loggerOrDefault() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
