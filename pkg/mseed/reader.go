package mseed

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// minimum bytes read before deciding a record's length
const probeSize = 1 << minRecordPow

// ReaderConfig holds configuration for a Reader.
type ReaderConfig struct {
	// DefaultLength is used for records without blockette 1000.
	DefaultLength int
	// Alloc supplies records. When nil a single record is reused, so each
	// Record returned by the reader is only valid until the next call to Next.
	Alloc Allocator
	// Options configure the reused record when Alloc is nil.
	Options []Option
}

// Reader streams records out of an io.Reader.
type Reader struct {
	r       *bufio.Reader
	config  ReaderConfig
	buf     []byte
	reuse   *Record
	record  *Record
	offset  int64
	skipped int
	err     error
}

// NewReader creates a reader over r.
func NewReader(r io.Reader, config ReaderConfig) *Reader {
	if config.DefaultLength < probeSize {
		config.DefaultLength = DefaultRecordLength
	}
	rd := &Reader{
		r:      bufio.NewReaderSize(r, 64*1024),
		config: config,
		buf:    make([]byte, config.DefaultLength),
	}
	if config.Alloc == nil {
		rd.reuse = NewRecord(config.Options...)
	}
	return rd
}

// Next advances to the next record. Records that fail to load are skipped;
// Next returns false at end of input or on a read error.
func (rd *Reader) Next() bool {
	for rd.err == nil {
		n, err := rd.readRecord()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				rd.err = err
			}
			return false
		}

		if rd.reuse != nil {
			err = rd.reuse.LoadAt(rd.buf, 0, n)
			rd.record = rd.reuse
		} else {
			rd.record, err = rd.config.Alloc.Acquire(rd.buf, 0, n)
		}
		rd.offset += int64(n)
		if err != nil {
			rd.skipped++
			continue
		}
		return true
	}
	return false
}

func (rd *Reader) readRecord() (int, error) {
	if len(rd.buf) < probeSize {
		rd.buf = make([]byte, probeSize)
	}
	n, err := io.ReadFull(rd.r, rd.buf[:probeSize])
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, fmt.Errorf("truncated record at offset %d: %d bytes", rd.offset, n)
		}
		return 0, err
	}
	length := PeekRecordLength(rd.buf[:probeSize])
	if length == 0 {
		length = rd.config.DefaultLength
	}
	if length > len(rd.buf) {
		nb := make([]byte, length)
		copy(nb, rd.buf[:probeSize])
		rd.buf = nb
	}
	if length > probeSize {
		if _, err := io.ReadFull(rd.r, rd.buf[probeSize:length]); err != nil {
			return 0, fmt.Errorf("truncated record at offset %d: %w", rd.offset, err)
		}
	}
	return length, nil
}

// Record returns the current record.
func (rd *Reader) Record() *Record {
	return rd.record
}

// Err returns the first read error other than io.EOF.
func (rd *Reader) Err() error {
	return rd.err
}

// Offset returns the number of bytes consumed so far.
func (rd *Reader) Offset() int64 {
	return rd.offset
}

// Skipped returns the number of records that failed to load.
func (rd *Reader) Skipped() int {
	return rd.skipped
}

// Writer writes records to an io.Writer through a buffer.
type Writer struct {
	w       *bufio.Writer
	written int64
}

// NewWriter creates a buffered record writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, 64*1024)}
}

// Write appends the record bytes.
func (w *Writer) Write(r *Record) error {
	n, err := w.w.Write(r.Bytes())
	w.written += int64(n)
	return err
}

// Written returns the number of bytes written.
func (w *Writer) Written() int64 {
	return w.written
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
