// Package qrcode renders QR codes as PNG images.
package qrcode

import (
	"fmt"

	goqr "github.com/skip2/go-qrcode"
)

// DefaultSize is the edge length in pixels used when none is given.
const DefaultSize = 256

// PNG encodes content at medium error correction.
func PNG(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("qrcode: empty content")
	}
	if size <= 0 {
		size = DefaultSize
	}
	return goqr.Encode(content, goqr.Medium, size)
}
