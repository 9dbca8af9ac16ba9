package transport

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"
)

const (
	DefaultBaud        = 115200
	defaultReadTimeout = 50 * time.Millisecond
	readChunkSize      = 256
)

// Serial is a Transport over a local serial port.
type Serial struct {
	mu   sync.Mutex
	baud int
	port *serial.Port
}

func NewSerial(baud int) *Serial {
	if baud <= 0 {
		baud = DefaultBaud
	}
	return &Serial{baud: baud}
}

func (s *Serial) Open(endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port != nil {
		return nil
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        endpoint,
		Baud:        s.baud,
		ReadTimeout: defaultReadTimeout,
	})
	if err != nil {
		return fmt.Errorf("transport: open %s: %w", endpoint, err)
	}
	s.port = port
	return nil
}

func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

func (s *Serial) ReadAvailable() ([]byte, error) {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return nil, ErrNotOpen
	}
	buf := make([]byte, readChunkSize)
	n, err := port.Read(buf)
	if err != nil {
		// tarm/serial reports a timed-out read with no data as EOF.
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("transport: read: %w", err)
	}
	return buf[:n], nil
}

func (s *Serial) Write(p []byte) error {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return ErrNotOpen
	}
	if _, err := port.Write(p); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}
