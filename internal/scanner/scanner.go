// Package scanner turns raw scanner input into catalog lookups. Hardware and image
// decoding stay behind the Decoder interface.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/safar/go-pos-store/internal/models"
)

var (
	ErrNoBarcode     = errors.New("no barcode detected")
	ErrDuplicateScan = errors.New("duplicate scan")
)

// Decoder extracts at most one barcode from an image. ok is false when the image holds none.
type Decoder interface {
	Decode(ctx context.Context, image []byte) (code string, ok bool, err error)
}

// LookupFunc resolves a normalised token to an active product.
type LookupFunc func(ctx context.Context, token string) (*models.Product, error)

// Normalize trims the token and strips hyphens and spaces.
func Normalize(token string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, token)
}

// Debouncer rejects a code seen again within Interval. Scanners repeat the same read
// while the item stays in front of them.
type Debouncer struct {
	Interval time.Duration

	mu       sync.Mutex
	lastCode string
	lastAt   time.Time
	now      func() time.Time
}

func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{Interval: interval, now: time.Now}
}

// Allow records code and reports whether it should be processed.
func (d *Debouncer) Allow(code string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if code == d.lastCode && now.Sub(d.lastAt) < d.Interval {
		return false
	}
	d.lastCode = code
	d.lastAt = now
	return true
}

type Scanner struct {
	decoder Decoder
	lookup  LookupFunc
}

func New(decoder Decoder, lookup LookupFunc) *Scanner {
	return &Scanner{decoder: decoder, lookup: lookup}
}

// Scan decodes image and looks the code up. A nil debouncer disables duplicate suppression.
func (s *Scanner) Scan(ctx context.Context, image []byte, debounce *Debouncer) (*models.Product, error) {
	if s.decoder == nil {
		return nil, fmt.Errorf("%w: no decoder configured", ErrNoBarcode)
	}

	code, ok, err := s.decoder.Decode(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if !ok {
		return nil, ErrNoBarcode
	}

	return s.Submit(ctx, code, debounce)
}

// Submit handles a token typed or sent by a keyboard-wedge scanner.
func (s *Scanner) Submit(ctx context.Context, token string, debounce *Debouncer) (*models.Product, error) {
	code := Normalize(token)
	if code == "" {
		return nil, ErrNoBarcode
	}
	if debounce != nil && !debounce.Allow(code) {
		return nil, ErrDuplicateScan
	}

	return s.lookup(ctx, code)
}
