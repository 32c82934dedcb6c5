// Package nonce produces the anti-replay values and expiration stamps that
// accompany signed ADEPT requests.
package nonce

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"time"
)

// ExpirationLayout is the timestamp layout ADEPT servers accept.
const ExpirationLayout = "2006-01-02T15:04:05-00:00"

// Validity is how long a signed request stays acceptable.
const Validity = 30 * time.Minute

var ErrExhausted = errors.New("nonce counter exhausted")

// Source hands out nonces built from a millisecond clock and a counter.
type Source struct {
	mu      sync.Mutex
	now     func() time.Time
	counter uint64
}

type Option = func(*Source)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Source) {
		s.now = now
	}
}

// WithStart sets the first counter value.
func WithStart(counter uint32) Option {
	return func(s *Source) {
		s.counter = uint64(counter)
	}
}

func NewSource(opts ...Option) *Source {
	s := &Source{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next returns base64(BE u32 ms-timestamp mod 2^32 || BE u32 counter).
func (s *Source) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.counter > math.MaxUint32 {
		return "", ErrExhausted
	}

	var raw [8]byte
	binary.BigEndian.PutUint32(raw[:4], uint32(s.now().UnixMilli()))
	binary.BigEndian.PutUint32(raw[4:], uint32(s.counter))
	s.counter++

	return base64.StdEncoding.EncodeToString(raw[:]), nil
}

// Expiration returns now+Validity in UTC, formatted for the wire.
func Expiration(now time.Time) string {
	return now.Add(Validity).UTC().Format(ExpirationLayout)
}
