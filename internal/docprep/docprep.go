package docprep

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
)

// Preparer normalizes downloaded inputs for the OCR engines: PDFs are
// rendered to a JPEG of their first page, images pass through untouched.
type Preparer struct {
	DPI     int
	Quality int
}

func New() *Preparer {
	return &Preparer{DPI: 200, Quality: 90}
}

// Prepare detects the real file type by magic bytes and returns a path
// the engines can consume plus a cleanup for any intermediate file.
func (p *Preparer) Prepare(ctx context.Context, path string) (string, func(), error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("detect file type: %w", err)
	}
	log.Debug().Str("mime", mtype.String()).Str("file", path).Msg("detected input type")

	if !mtype.Is("application/pdf") {
		return path, nil, nil
	}

	// Page count is informational; rendering proceeds regardless.
	if pages, err := api.PageCountFile(path); err == nil {
		log.Info().Int("pages", pages).Str("file", path).Msg("pdf input")
	} else {
		log.Warn().Err(err).Str("file", path).Msg("pdf page count failed")
	}

	jpegBytes, err := p.renderFirstPage(path)
	if err != nil {
		return "", nil, err
	}

	tmp, err := os.CreateTemp("", "ocr-page-*.jpg")
	if err != nil {
		return "", nil, fmt.Errorf("create render temp: %w", err)
	}
	if _, err := tmp.Write(jpegBytes); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("write render temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("close render temp: %w", err)
	}

	name := tmp.Name()
	return name, func() { os.Remove(name) }, nil
}

func (p *Preparer) renderFirstPage(pdfPath string) ([]byte, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	img, err := doc.ImageDPI(0, float64(p.DPI))
	if err != nil {
		return nil, fmt.Errorf("render pdf page: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.Quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
