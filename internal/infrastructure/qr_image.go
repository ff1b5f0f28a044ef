package infrastructure

import (
	"fmt"

	"github.com/skip2/go-qrcode"
	"github.com/vincent-petithory/dataurl"
)

// QRDataURL renders a pairing code as a data:image/png;base64 URL.
func QRDataURL(code string) (string, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR: %w", err)
	}
	return dataurl.New(png, "image/png").String(), nil
}
