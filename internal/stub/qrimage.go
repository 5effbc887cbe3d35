package stub

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

const (
	qrModules = 25
	qrScale   = 10
	qrBorder  = 4
)

// QRImage renders a deterministic black-and-white placeholder for a payload
// and returns it as a PNG data URI. The pattern is derived from the payload
// so distinct sessions produce distinct images, but it is not a scannable
// code; the production backend renders a real one. Clients in this repo read
// the payload from the qr_data field instead.
func QRImage(payload string) (string, error) {
	sum := sha256.Sum256([]byte(payload))

	side := (qrModules + 2*qrBorder) * qrScale
	img := image.NewGray(image.Rect(0, 0, side, side))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}

	bitAt := func(x, y int) bool {
		idx := y*qrModules + x
		return sum[(idx/8)%len(sum)]&(1<<(idx%8)) != 0
	}

	for my := 0; my < qrModules; my++ {
		for mx := 0; mx < qrModules; mx++ {
			if !bitAt(mx, my) && !inFinder(mx, my) {
				continue
			}
			fillModule(img, mx, my)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode qr image: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// inFinder marks the three corner squares so the placeholder reads as a QR
// code at a glance.
func inFinder(mx, my int) bool {
	corner := func(ox, oy int) bool {
		x, y := mx-ox, my-oy
		if x < 0 || x > 6 || y < 0 || y > 6 {
			return false
		}
		edge := x == 0 || x == 6 || y == 0 || y == 6
		core := x >= 2 && x <= 4 && y >= 2 && y <= 4
		return edge || core
	}
	return corner(0, 0) || corner(qrModules-7, 0) || corner(0, qrModules-7)
}

func fillModule(img *image.Gray, mx, my int) {
	x0 := (mx + qrBorder) * qrScale
	y0 := (my + qrBorder) * qrScale
	for y := y0; y < y0+qrScale; y++ {
		for x := x0; x < x0+qrScale; x++ {
			img.SetGray(x, y, color.Gray{})
		}
	}
}
