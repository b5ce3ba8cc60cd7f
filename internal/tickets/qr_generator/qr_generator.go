package qr

import (
	"encoding/base64"
	"errors"
	"sync"

	"github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 256
	maxCached   = 512
)

// QRGenerator renders the QR code scanned at the door. The payload is the
// bare ticket id so a scan resolves straight back to the ticket.
type QRGenerator struct {
	size  int
	mu    sync.Mutex
	cache map[string][]byte
}

func NewQRGenerator(size int) *QRGenerator {
	if size <= 0 {
		size = DefaultSize
	}
	return &QRGenerator{size: size, cache: make(map[string][]byte)}
}

// PNG is a pure function of ticketID, so results are memoised.
func (q *QRGenerator) PNG(ticketID string) ([]byte, error) {
	if ticketID == "" {
		return nil, errors.New("empty ticket id")
	}

	q.mu.Lock()
	if png, ok := q.cache[ticketID]; ok {
		q.mu.Unlock()
		return png, nil
	}
	q.mu.Unlock()

	png, err := qrcode.Encode(ticketID, qrcode.Medium, q.size)
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	if len(q.cache) >= maxCached {
		q.cache = make(map[string][]byte)
	}
	q.cache[ticketID] = png
	q.mu.Unlock()

	return png, nil
}

func (q *QRGenerator) DataURL(ticketID string) (string, error) {
	png, err := q.PNG(ticketID)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
