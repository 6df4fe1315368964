package extractor

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// MinImageDimension is the exclusive lower bound on both image sides.
// Smaller images are icons, bullets and rules rather than content.
const MinImageDimension = 250

func qualifies(width, height int) bool {
	return width > MinImageDimension && height > MinImageDimension
}

// probeImage decodes only the header of an encoded image.
func probeImage(data []byte) (width, height int, format string, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", err
	}
	return cfg.Width, cfg.Height, format, nil
}
