// Package ocr runs text recognition on frames through the tesseract command line tool.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/disintegration/imaging"

	"github.com/andresmejia3/streamsnap/internal/utils"
)

// Engine extracts text from an encoded image.
type Engine interface {
	Extract(ctx context.Context, image []byte) (string, error)
}

// Tesseract is an Engine backed by one tesseract process per image.
type Tesseract struct {
	Bin       string        // defaults to "tesseract"
	Lang      string        // defaults to "eng"
	PSM       int           // page segmentation mode, 0 keeps tesseract's default
	Timeout   time.Duration // per-image limit, 0 means none
	Grayscale bool          // convert to grayscale before recognition
}

// Args returns the tesseract argument list. Input comes from stdin, text goes to stdout.
func (t *Tesseract) Args() []string {
	lang := t.Lang
	if lang == "" {
		lang = "eng"
	}
	args := []string{"stdin", "stdout", "-l", lang}
	if t.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.PSM))
	}
	return args
}

// Extract returns the recognized text exactly as tesseract printed it, trailing newline and form
// feed included. Callers that compare texts rely on nothing being normalised away.
func (t *Tesseract) Extract(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", errors.New("empty image")
	}

	input := image
	if t.Grayscale {
		gray, err := Grayscale(image)
		if err != nil {
			return "", err
		}
		input = gray
	}

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	bin := t.Bin
	if bin == "" {
		bin = "tesseract"
	}
	cmd := utils.NewSafeCommand(ctx, bin, t.Args()...)
	cmd.Stdin = bytes.NewReader(input)

	out, err := cmd.Output()
	if err != nil {
		if tail := cmd.StderrTail(512); tail != "" {
			return "", fmt.Errorf("%s: %w: %s", bin, err, tail)
		}
		return "", fmt.Errorf("%s: %w", bin, err)
	}
	return string(out), nil
}

// Grayscale decodes an image, drops its color and re-encodes it as PNG, which tesseract reads
// losslessly.
func Grayscale(image []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.Grayscale(img), imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode grayscale frame: %w", err)
	}
	return buf.Bytes(), nil
}
