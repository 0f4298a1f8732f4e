// Package composer overlays a captured signature and a caption line onto one
// page of an existing PDF, producing a new document with identical page
// count and ordering. Source pages are imported as form XObjects so
// non-target pages pass through untouched; the target page is stamped with
// the signature image and a "Signed by" caption.
package composer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/digitorus/pdf"
	"github.com/jung-kurt/gofpdf"
	"github.com/mattetti/filebuffer"
	"github.com/phpdave11/gofpdi"

	"permit-portal/signing-backend/internal/capture"
)

var (
	// ErrBlankSignature rejects composition before any document bytes are
	// produced.
	ErrBlankSignature = errors.New("signature image is blank")
	// ErrEmptyName rejects a signer display name that is empty after
	// trimming.
	ErrEmptyName = errors.New("signer name is empty")
	// ErrPageOutOfRange rejects a target page index outside the source
	// document.
	ErrPageOutOfRange = errors.New("target page index out of range")
)

// US Letter in PDF points, the page-size convention for the overlay.
const (
	letterWidth  = 612.0
	letterHeight = 792.0
)

// Options fixes the signature placement. Coordinates are in PDF points with
// the origin at the bottom-left of the page; the signature's bottom-left
// corner lands at (X, Y) and the caption baseline sits CaptionOffset points
// below Y.
type Options struct {
	PageIndex      int
	X              float64
	Y              float64
	SignatureWidth float64
	CaptionOffset  float64
	FontFamily     string
	FontSize       float64
}

// DefaultOptions returns the fixed placement the permit form uses: page 0,
// bottom-left anchor at (50, 50), 100pt wide signature, Helvetica 10
// caption 15pt below the image.
func DefaultOptions() Options {
	return Options{
		PageIndex:      0,
		X:              50,
		Y:              50,
		SignatureWidth: 100,
		CaptionOffset:  15,
		FontFamily:     "Helvetica",
		FontSize:       10,
	}
}

// Composer builds signed documents. It is stateless between calls; each
// Compose parses the source afresh and writes a complete new byte stream.
type Composer struct {
	opts Options
}

// New returns a Composer with the given placement options.
func New(opts Options) *Composer {
	return &Composer{opts: opts}
}

// PageCount parses doc and returns its number of pages.
func PageCount(doc []byte) (int, error) {
	r, err := pdf.NewReader(filebuffer.New(doc), int64(len(doc)))
	if err != nil {
		return 0, fmt.Errorf("parse document: %w", err)
	}
	return r.NumPage(), nil
}

// Compose overlays sig and the caption "Signed by: <displayName>" onto the
// configured page of source and returns the complete signed document. The
// source bytes are never mutated. Composition is deterministic and
// retry-free; every failure is structural.
func (c *Composer) Compose(source []byte, sig *capture.SignatureImage, displayName string) ([]byte, error) {
	if sig == nil || sig.Blank() {
		return nil, ErrBlankSignature
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		return nil, ErrEmptyName
	}

	pageCount, err := PageCount(source)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	if c.opts.PageIndex < 0 || c.opts.PageIndex >= pageCount {
		return nil, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, c.opts.PageIndex, pageCount)
	}

	out := gofpdf.New("P", "pt", "Letter", "")
	out.SetAutoPageBreak(false, 0)

	imgOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	info := out.RegisterImageOptionsReader("signature", imgOpts, bytes.NewReader(sig.PNG()))
	if out.Err() {
		return nil, fmt.Errorf("decode signature image: %w", out.Error())
	}

	importer := gofpdi.NewImporter()
	var rs io.ReadSeeker = filebuffer.New(source)
	importer.SetSourceStream(&rs)
	sizes := importer.GetPageSizes()

	for pageNo := 1; pageNo <= pageCount; pageNo++ {
		width, height := pageSize(sizes, pageNo)

		orientation := "P"
		if width > height {
			orientation = "L"
		}
		out.AddPageFormat(orientation, gofpdf.SizeType{Wd: width, Ht: height})

		tpl := importPage(out, importer, pageNo)
		useTemplate(out, importer, tpl, width, height)

		if pageNo-1 == c.opts.PageIndex {
			c.stamp(out, info, imgOpts, name, height)
		}
	}

	var buf bytes.Buffer
	if err := out.Output(&buf); err != nil {
		return nil, fmt.Errorf("write signed document: %w", err)
	}
	return buf.Bytes(), nil
}

// stamp draws the signature image and the caption line onto the current
// page. gofpdf places images from their top-left corner with y growing
// downward, so the bottom-left anchor is translated from page coordinates.
func (c *Composer) stamp(out *gofpdf.Fpdf, info *gofpdf.ImageInfoType, imgOpts gofpdf.ImageOptions, name string, pageHeight float64) {
	drawHeight := c.opts.SignatureWidth * info.Height() / info.Width()
	top := pageHeight - c.opts.Y - drawHeight
	out.ImageOptions("signature", c.opts.X, top, c.opts.SignatureWidth, 0, false, imgOpts, 0, "")

	out.SetFont(c.opts.FontFamily, "", c.opts.FontSize)
	out.SetTextColor(0, 0, 0)
	out.Text(c.opts.X, pageHeight-(c.opts.Y-c.opts.CaptionOffset), "Signed by: "+name)
}

// importPage pulls one source page into the output document as a form
// XObject, registering the imported objects with the writer. This is the
// same handshake gofpdi's package-level helpers perform, done against a
// local importer so concurrent compositions do not share parser state.
func importPage(out *gofpdf.Fpdf, importer *gofpdi.Importer, pageNo int) int {
	tpl := importer.ImportPage(pageNo, "/MediaBox")
	out.ImportTemplates(importer.PutFormXobjectsUnordered())
	out.ImportObjects(importer.GetImportedObjectsUnordered())
	out.ImportObjPos(importer.GetImportedObjHashPos())
	return tpl
}

func useTemplate(out *gofpdf.Fpdf, importer *gofpdi.Importer, tpl int, width, height float64) {
	name, scaleX, scaleY, tX, tY := importer.UseTemplate(tpl, 0, 0, width, height)
	out.UseImportedTemplate(name, scaleX, scaleY, tX, tY)
}

func pageSize(sizes map[int]map[string]map[string]float64, pageNo int) (float64, float64) {
	width, height := letterWidth, letterHeight
	if box, ok := sizes[pageNo]["/MediaBox"]; ok {
		if box["w"] > 0 {
			width = box["w"]
		}
		if box["h"] > 0 {
			height = box["h"]
		}
	}
	return width, height
}
