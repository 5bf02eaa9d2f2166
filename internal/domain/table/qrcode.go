package table

import (
	"github.com/go-faster/errors"
	qrcode "github.com/skip2/go-qrcode"
)

// QRImageSize is the side of a rendered QR code in pixels.
const QRImageSize = 200

// QRCodePNG renders the table's QR payload as a square PNG image.
func (t *Table) QRCodePNG() ([]byte, error) {
	img, err := qrcode.Encode(t.QRCode, qrcode.Medium, QRImageSize)
	if err != nil {
		return nil, errors.Wrapf(err, "render qr code for table %s", t.Number)
	}
	return img, nil
}
