package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/joelkehle/hmrc-complaints/internal/lettergen"
)

// WriteEvent frames one event as `event: <name>\ndata: <json>\n\n`.
func WriteEvent(w io.Writer, evt Event) error {
	blob, err := json.Marshal(evt.Data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, blob)
	return err
}

// ServeSSE starts a session for req and relays its events until the
// terminal event or until the client goes away. It returns the session so
// callers can log or inspect it; the pipeline may still be finishing.
func (g *Gateway) ServeSSE(w http.ResponseWriter, r *http.Request, req lettergen.Request) (*Session, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s := g.Start(r.Context(), req)
	bw := bufio.NewWriter(w)
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			s.Cancel()
			g.logger.Info("letter stream subscriber disconnected", "session_id", s.ID, "stage", string(s.Stage()))
			return s, nil
		case evt, ok := <-s.Events():
			if !ok {
				return s, nil
			}
			if err := WriteEvent(bw, evt); err != nil {
				s.Cancel()
				return s, nil
			}
			if err := bw.Flush(); err != nil {
				s.Cancel()
				return s, nil
			}
			flusher.Flush()
		}
	}
}
