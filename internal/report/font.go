package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/image/font/sfnt"
)

const (
	defaultFontTimeout = 10 * time.Second
	maxFontSize        = 32 << 20
)

var errNoFontSource = errors.New("no font path or URL configured")

// arabicSample are letters every Arabic-capable font must map.
var arabicSample = []rune{'\u0627', '\u0628', '\u0644', '\u0645', '\u0646'}

// loadFont reads the TrueType font named by cfg. A URL is fetched once,
// without retries, within cfg.FontTimeout.
func loadFont(ctx context.Context, cfg Config) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case cfg.FontPath != "":
		data, err = os.ReadFile(cfg.FontPath)
		if err != nil {
			return nil, fmt.Errorf("read font: %w", err)
		}
	case cfg.FontURL != "":
		data, err = fetchFont(ctx, cfg)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errNoFontSource
	}
	if !isTrueType(data) {
		return nil, errors.New("font is not a TrueType file")
	}
	return data, nil
}

func fetchFont(ctx context.Context, cfg Config) ([]byte, error) {
	timeout := cfg.FontTimeout
	if timeout <= 0 {
		timeout = defaultFontTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.FontURL, nil)
	if err != nil {
		return nil, fmt.Errorf("font request: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch font: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch font: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFontSize+1))
	if err != nil {
		return nil, fmt.Errorf("read font body: %w", err)
	}
	if len(data) > maxFontSize {
		return nil, errors.New("font exceeds size limit")
	}
	return data, nil
}

// isTrueType checks the sfnt version tag. CFF based OpenType fonts are
// rejected since the PDF writer only embeds glyf outlines.
func isTrueType(b []byte) bool {
	if len(b) < 12 {
		return false
	}
	return bytes.Equal(b[:4], []byte{0, 1, 0, 0}) || bytes.Equal(b[:4], []byte("true"))
}

// coversArabic checks the font's cmap for arabicSample.
func coversArabic(ttf []byte) error {
	f, err := sfnt.Parse(ttf)
	if err != nil {
		return fmt.Errorf("parse font: %w", err)
	}
	var buf sfnt.Buffer
	var missing []string
	for _, r := range arabicSample {
		idx, err := f.GlyphIndex(&buf, r)
		if err != nil {
			return fmt.Errorf("look up glyph %U: %w", r, err)
		}
		if idx == 0 {
			missing = append(missing, fmt.Sprintf("%U", r))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("font has no glyphs for %v", missing)
	}
	return nil
}
