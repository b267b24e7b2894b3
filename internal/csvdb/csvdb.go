// Package csvdb is a tiny append-only record file: rows are decoded through
// an explicit per-type Codec and appended one line at a time.
package csvdb

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Codec maps one record type to and from a row of fields.
type Codec[T any] interface {
	// Header names the columns; its length is the expected column count.
	Header() []string
	Decode(fields []string) (T, error)
	// Encode returns the fields exactly as they should appear in the file,
	// or ErrUnencodable when the record can't be read back.
	Encode(record T) ([]string, error)
}

// ErrUnencodable marks records whose row could never be decoded again.
var ErrUnencodable = errors.New("record can't be stored as a csv row")

// Database reads and appends records of type T in a single file.
type Database[T any] struct {
	path  string
	codec Codec[T]
	mu    sync.Mutex // serializes Store within this value only
}

// New returns a database over path. The file is created on first Store.
func New[T any](path string, codec Codec[T]) *Database[T] {
	return &Database[T]{path: path, codec: codec}
}

// Path returns the backing file path.
func (d *Database[T]) Path() string { return d.path }

// Read returns up to limit records in file order. Rows that can't be parsed
// or decoded are skipped. A missing file reads as empty.
func (d *Database[T]) Read(limit int) ([]T, error) {
	res := []T{}
	if limit <= 0 {
		return res, nil
	}

	f, err := os.Open(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return res, nil
		}
		return nil, errors.Wrapf(err, "can't open %s", d.path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	width := len(d.codec.Header())

	for len(res) < limit {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return nil, errors.Wrapf(err, "can't read %s", d.path)
		}
		if len(fields) != width {
			continue
		}
		rec, err := d.codec.Decode(fields)
		if err != nil {
			continue
		}
		res = append(res, rec)
	}
	return res, nil
}

// ReadAll returns every decodable record.
func (d *Database[T]) ReadAll() ([]T, error) {
	return d.Read(int(^uint(0) >> 1))
}

// Store appends record as one line. The fields are joined with commas as the
// codec produced them, the writer adds no quoting of its own. The file is
// opened and closed on every call.
func (d *Database[T]) Store(record T) error {
	fields, err := d.codec.Encode(record)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if dir := filepath.Dir(d.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "can't create dir for %s", d.path)
		}
	}

	f, err := os.OpenFile(d.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "can't open %s for append", d.path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrapf(err, "can't stat %s", d.path)
	}

	var b strings.Builder
	switch {
	case info.Size() == 0:
		b.WriteString(strings.Join(d.codec.Header(), ","))
		b.WriteByte('\n')
	default:
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, info.Size()-1); err != nil {
			return errors.Wrapf(err, "can't read tail of %s", d.path)
		}
		if last[0] != '\n' {
			b.WriteByte('\n')
		}
	}
	b.WriteString(strings.Join(fields, ","))
	b.WriteByte('\n')

	if _, err := f.WriteString(b.String()); err != nil {
		return errors.Wrapf(err, "can't append to %s", d.path)
	}
	return nil
}
