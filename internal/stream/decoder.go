package stream

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
)

const readChunkSize = 4096

// Decoder turns a byte stream of newline-delimited JSON records into a
// sequence of Events. It is deliberately decoupled from any transport: feed
// it a bytes.Reader in tests, an HTTP response body in production.
//
// Lines are not assumed to align with read chunks; a partial trailing line
// is buffered until the next read completes it. Splitting on the linefeed
// byte is safe for UTF-8 content because multi-byte sequences never contain
// 0x0A. A line that fails to parse is logged, counted and skipped; it never
// aborts the rest of the stream.
type Decoder struct {
	r       io.Reader
	buf     []byte
	pending [][]byte
	eof     bool
	logger  *log.Logger
}

// NewDecoder wraps r. logger may be nil, in which case the default logger
// is used for skipped-line reports.
func NewDecoder(r io.Reader, logger *log.Logger) *Decoder {
	if logger == nil {
		logger = log.Default()
	}
	return &Decoder{r: r, logger: logger}
}

// Next returns the next well-formed event in wire order. It returns io.EOF
// once the stream is exhausted, and any other read error verbatim. Malformed
// lines are skipped internally and never surface as errors.
func (d *Decoder) Next() (Event, error) {
	for {
		if ev, ok := d.nextBuffered(); ok {
			return ev, nil
		}
		if d.eof {
			return Event{}, io.EOF
		}
		if err := d.fill(); err != nil {
			return Event{}, err
		}
	}
}

// NextBuffered returns the next event among lines already split from chunks
// read so far, without issuing another read. The aggregator uses this to
// drain what is already in hand after an in-band error event.
func (d *Decoder) NextBuffered() (Event, bool) {
	return d.nextBuffered()
}

func (d *Decoder) nextBuffered() (Event, bool) {
	for len(d.pending) > 0 {
		line := d.pending[0]
		d.pending = d.pending[1:]
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			parseFailures.Inc()
			d.logger.Printf("stream: skipping malformed line: %v", err)
			continue
		}
		eventsTotal.WithLabelValues(string(ev.Type)).Inc()
		return ev, true
	}
	return Event{}, false
}

// fill reads one chunk and splits any complete lines out of the buffer. At
// end of stream a trailing line without a final newline is still processed.
func (d *Decoder) fill() error {
	chunk := make([]byte, readChunkSize)
	n, err := d.r.Read(chunk)
	if n > 0 {
		d.buf = append(d.buf, chunk[:n]...)
		for {
			i := bytes.IndexByte(d.buf, '\n')
			if i < 0 {
				break
			}
			line := make([]byte, i)
			copy(line, d.buf[:i])
			d.pending = append(d.pending, line)
			d.buf = d.buf[i+1:]
		}
	}
	if err == io.EOF {
		d.eof = true
		if len(d.buf) > 0 {
			d.pending = append(d.pending, d.buf)
			d.buf = nil
		}
		return nil
	}
	return err
}
