package csvfile

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"taskdesk/internal/domain"
)

type record struct {
	line   int
	raw    string
	fields []string
}

// table is one delimited file: its header row and its data records.
type table struct {
	header  []string
	records []record
}

// readTable parses path one physical line at a time, so a damaged line can
// never absorb the lines after it. A line that is not valid CSV is split on
// the bare delimiter, which is how unquoted legacy files were written. Blank
// lines are ignored and an absent file yields an empty table.
func readTable(ctx context.Context, path string, logger logrus.FieldLogger) (table, error) {
	if err := ctx.Err(); err != nil {
		return table{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return table{}, nil
		}
		return table{}, domain.IOFailure("open", path, err)
	}
	defer f.Close()

	var (
		t          table
		seenHeader bool
		br         = bufio.NewReader(f)
	)
	for lineNo := 1; ; lineNo++ {
		raw, readErr := br.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return table{}, domain.IOFailure("read", path, readErr)
		}

		if line := strings.TrimRight(raw, "\r\n"); line != "" {
			fields, err := DecodeLine(line)
			if err != nil {
				logger.WithFields(logrus.Fields{"file": path, "line": lineNo}).
					Debugf("split unquoted line on delimiter: %v", err)
				fields = strings.Split(line, delimiter)
			}
			if seenHeader {
				t.records = append(t.records, record{line: lineNo, raw: line, fields: fields})
			} else {
				t.header = fields
				seenHeader = true
			}
		}

		if readErr != nil {
			return t, nil
		}
	}
}

// readRecords returns every data record of path, skipping the header line.
func readRecords(ctx context.Context, path string, logger logrus.FieldLogger) ([]record, error) {
	t, err := readTable(ctx, path, logger)
	if err != nil {
		return nil, err
	}
	return t.records, nil
}

// appendRecord appends one encoded line to path, writing header first when
// the file is new or empty.
func appendRecord(ctx context.Context, path string, header, fields []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return domain.IOFailure("create dir for", path, err)
	}

	line, err := EncodeLine(fields)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return domain.IOFailure("open", path, err)
	}

	var buf bytes.Buffer
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return domain.IOFailure("stat", path, err)
	}
	if info.Size() == 0 {
		headerLine, err := EncodeLine(header)
		if err != nil {
			f.Close()
			return err
		}
		buf.WriteString(headerLine + "\n")
	} else if !endsWithNewline(path, info.Size()) {
		buf.WriteByte('\n')
	}
	buf.WriteString(line + "\n")

	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return domain.IOFailure("append to", path, err)
	}
	if err := f.Close(); err != nil {
		return domain.IOFailure("close", path, err)
	}
	return nil
}

// writeRecords replaces path with header followed by rows.
func writeRecords(ctx context.Context, path string, header []string, rows [][]string) error {
	lines := make([]string, 0, len(rows)+1)
	for _, fields := range append([][]string{header}, rows...) {
		line, err := EncodeLine(fields)
		if err != nil {
			return err
		}
		lines = append(lines, line)
	}
	return writeLines(ctx, path, lines)
}

// writeLines replaces path with lines, each terminated by a newline.
func writeLines(ctx context.Context, path string, lines []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if err := WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return domain.IOFailure("write", path, err)
	}
	return nil
}

func endsWithNewline(path string, size int64) bool {
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return true
	}
	return last[0] == '\n'
}

// WriteFileAtomic writes data to a temp file in the same directory, syncs it
// and renames it over path, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	// Some platforms cannot fsync a directory; the rename has already happened.
	_ = d.Sync()
	return nil
}
