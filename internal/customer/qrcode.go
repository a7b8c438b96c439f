package customer

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// QRCode renders payload as a PNG of size×size pixels.
func QRCode(payload string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}
