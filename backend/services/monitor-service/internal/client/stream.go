package client

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

// Event is one decoded server-sent event.
type Event struct {
	Type string
	Data []byte
}

// Stream decodes a text/event-stream body. It is not safe for concurrent
// Next calls; Close may be called from any goroutine.
type Stream struct {
	body   io.ReadCloser
	reader *bufio.Reader

	mu        sync.Mutex
	connected bool
	closed    bool
}

// NewStream wraps body.
func NewStream(body io.ReadCloser) *Stream {
	return &Stream{body: body, reader: bufio.NewReader(body)}
}

// Connected reports whether any bytes, including the server's initial probe,
// have been received.
func (s *Stream) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Next blocks until a complete event arrives. Comment lines and blank
// keep-alives are skipped. It returns io.EOF once the stream ends.
func (s *Stream) Next() (Event, error) {
	var (
		ev      Event
		data    []string
		hasData bool
	)
	for {
		line, err := s.reader.ReadString('\n')
		if len(line) > 0 {
			s.markConnected()
		}
		if err != nil {
			if s.isClosed() {
				return Event{}, io.EOF
			}
			return Event{}, err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if !hasData {
				ev = Event{}
				continue
			}
			if ev.Type == "" {
				ev.Type = "message"
			}
			ev.Data = []byte(strings.Join(data, "\n"))
			return ev, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Type = value
		case "data":
			data = append(data, value)
			hasData = true
		}
	}
}

// Close ends the stream and unblocks a pending Next.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.body.Close()
}

func (s *Stream) markConnected() {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
}

func (s *Stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
