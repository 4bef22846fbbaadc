package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
)

// utf8BOM lets spreadsheet tools detect the encoding of the download.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVStream writes delimited rows incrementally to an output writer so the
// consumer starts receiving bytes before the producing query finishes. The
// underlying buffers are flushed every flushEvery rows to bound memory on
// large exports.
type CSVStream struct {
	out        io.Writer
	writer     *csv.Writer
	flushEvery int
	written    int
}

// NewCSVStream emits the BOM and header row, then returns a stream ready for
// record writes.
func NewCSVStream(out io.Writer, headers []string, flushEvery int) (*CSVStream, error) {
	if len(headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	if flushEvery <= 0 {
		flushEvery = 5000
	}
	if _, err := out.Write(utf8BOM); err != nil {
		return nil, fmt.Errorf("write bom: %w", err)
	}
	writer := csv.NewWriter(out)
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	return &CSVStream{out: out, writer: writer, flushEvery: flushEvery}, nil
}

// Write appends one record, flushing on the configured cadence.
func (s *CSVStream) Write(record []string) error {
	if err := s.writer.Write(record); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	s.written++
	if s.written%s.flushEvery == 0 {
		s.flush()
	}
	return s.writer.Error()
}

// Close flushes any buffered output.
func (s *CSVStream) Close() error {
	s.flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func (s *CSVStream) flush() {
	s.writer.Flush()
	if f, ok := s.out.(http.Flusher); ok {
		f.Flush()
	}
}
