package stream

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/chrisgscott/ellen/models"
)

// Handler receives the decoded stream as typed callbacks. Any callback may
// be nil; nil callbacks are skipped. Callbacks are invoked strictly in wire
// order, never concurrently.
type Handler struct {
	// OnToken receives the cumulative assistant text so far, not the delta.
	OnToken       func(fullText string)
	OnSources     func(sources []models.Source)
	OnMaterials   func(materials []models.Material)
	OnSuggestions func(questions []string)
	OnError       func(err error)
}

// StreamError is an in-band error event reported by the chat backend.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string { return "chat backend error: " + e.Message }

// Aggregator drives a Decoder over a live stream, maintaining the running
// assistant text and dispatching typed callbacks. One aggregator serves
// exactly one stream; it is not safe for concurrent use.
type Aggregator struct {
	logger *log.Logger
	text   strings.Builder
}

// NewAggregator returns an aggregator logging through logger (nil for the
// default logger).
func NewAggregator(logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.Default()
	}
	return &Aggregator{logger: logger}
}

// Text returns the assistant text accumulated so far. During an active run
// its length is monotonically non-decreasing.
func (a *Aggregator) Text() string { return a.text.String() }

// Run consumes rc until end-of-stream, cancellation, a transport failure or
// an in-band error event. rc is closed exactly once on every exit path; a
// failure to close is logged, never propagated.
//
// Cancellation of ctx is benign termination: the loop stops within one read
// granularity, no further callbacks fire and no error is reported. Any other
// read failure is handed to h.OnError and also returned. An in-band error
// event is handed to h.OnError, lines already buffered from the same chunk
// are drained first, and the stream stops being read.
func (a *Aggregator) Run(ctx context.Context, rc io.ReadCloser, h Handler) error {
	var closeOnce sync.Once
	release := func() {
		closeOnce.Do(func() {
			if err := rc.Close(); err != nil {
				a.logger.Printf("stream: close: %v", err)
			}
		})
	}
	defer release()

	dec := NewDecoder(rc, a.logger)
	for {
		if ctx.Err() != nil {
			return nil
		}
		ev, err := dec.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			streamErrors.Inc()
			if h.OnError != nil {
				h.OnError(err)
			}
			return err
		}
		if serr := a.dispatch(ev, h); serr != nil {
			// Drain what was already split off the wire before stopping:
			// the error must not swallow events that arrived ahead of it.
			for {
				buffered, ok := dec.NextBuffered()
				if !ok {
					break
				}
				a.dispatch(buffered, h)
			}
			return serr
		}
	}
}

// dispatch applies one event. It returns a non-nil error only for in-band
// error events, which are terminal for the stream. Malformed payloads are
// logged and skipped, matching the per-line isolation contract.
func (a *Aggregator) dispatch(ev Event, h Handler) error {
	switch ev.Type {
	case EventToken:
		delta, err := ev.Token()
		if err != nil {
			a.logger.Printf("stream: %v", err)
			return nil
		}
		a.text.WriteString(delta)
		if h.OnToken != nil {
			h.OnToken(a.text.String())
		}
	case EventSources:
		sources, err := ev.Sources()
		if err != nil {
			a.logger.Printf("stream: %v", err)
			return nil
		}
		if h.OnSources != nil {
			h.OnSources(sources)
		}
	case EventMaterials:
		materials, err := ev.Materials()
		if err != nil {
			a.logger.Printf("stream: %v", err)
			return nil
		}
		if h.OnMaterials != nil {
			h.OnMaterials(materials)
		}
	case EventSuggestions:
		questions, err := ev.Suggestions()
		if err != nil {
			a.logger.Printf("stream: %v", err)
			return nil
		}
		if h.OnSuggestions != nil {
			h.OnSuggestions(questions)
		}
	case EventError:
		msg, err := ev.Token()
		if err != nil {
			a.logger.Printf("stream: %v", err)
			return nil
		}
		streamErrors.Inc()
		serr := &StreamError{Message: msg}
		if h.OnError != nil {
			h.OnError(serr)
		}
		return serr
	default:
		a.logger.Printf("stream: ignoring unknown event type %q", ev.Type)
	}
	return nil
}
