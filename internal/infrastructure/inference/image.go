package inference

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

const maxProfilePicBytes = 8 << 20

var imageClient = &http.Client{Timeout: 10 * time.Second}

// fetchProfilePicture downloads a profile picture and normalizes it to a
// bounded JPEG suitable for the vision API: webp and png inputs are decoded,
// large images are downscaled.
func fetchProfilePicture(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := imageClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProfilePicBytes))
	if err != nil {
		return nil, err
	}

	img, err := decodeImage(raw)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	if bounds.Dx() > 512 || bounds.Dy() > 512 {
		img = imaging.Fit(img, 512, 512, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeImage(raw []byte) (image.Image, error) {
	if isWebP(raw) {
		img, err := webp.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to decode webp image: %w", err)
		}
		return img, nil
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func isWebP(raw []byte) bool {
	return len(raw) >= 12 &&
		string(raw[0:4]) == "RIFF" &&
		string(raw[8:12]) == "WEBP"
}
