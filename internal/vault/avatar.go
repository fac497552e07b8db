package vault

import (
	"encoding/base64"
	"fmt"

	"github.com/skip2/go-qrcode"
)

// avatarQR renders the address as a QR code PNG, base64-encoded. Used as the
// default account avatar.
func avatarQR(address string) (string, error) {
	qr, err := qrcode.New(address, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to create QR code: %w", err)
	}
	png, err := qr.PNG(256)
	if err != nil {
		return "", fmt.Errorf("failed to generate PNG: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
