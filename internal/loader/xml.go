package loader

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Veraticus/contaflow/internal/common"
	"github.com/Veraticus/contaflow/internal/model"
	"github.com/spf13/afero"
	"golang.org/x/text/encoding/htmlindex"
)

// Element paths read from an electronic invoice, matched on local names so
// any schema namespace or version is accepted. A path matches when it is a
// suffix of the element's ancestry.
var invoicePaths = map[string][]string{
	FieldDocument:     {"NumeroConsecutivo"},
	FieldDate:         {"FechaEmision"},
	FieldCounterparty: {"Emisor", "Identificacion", "Numero"},
	FieldAmount:       {"ResumenFactura", "TotalComprobante"},
	FieldDescription:  {"Emisor", "Nombre"},
	FieldNote:         {"OtroTexto"},
}

var detailPath = []string{"LineaDetalle", "Detalle"}

// XMLSource reads one electronic invoice as one authoritative record.
type XMLSource struct {
	fs   afero.Fs
	path string
}

// NewXMLSource creates a source for path.
func NewXMLSource(fs afero.Fs, path string) *XMLSource {
	return &XMLSource{fs: fs, path: path}
}

// Name returns the path used in record positions.
func (s *XMLSource) Name() string {
	return s.path
}

// Origin implements Source.
func (s *XMLSource) Origin() model.Origin {
	return model.OriginAuthoritative
}

// Load decodes the invoice. A document that is not well-formed XML yields a
// MalformedRecordError rather than a source failure, since one bad file must
// not sink a whole company folder.
func (s *XMLSource) Load(ctx context.Context, company model.CompanyProfile) ([]model.SourceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := s.fs.Open(s.path)
	if err != nil {
		return nil, unreadable(s.path, err)
	}
	defer func() { _ = file.Close() }()

	fields, details, err := decodeInvoice(file)
	if err != nil {
		var syntaxErr *xml.SyntaxError
		if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, errEmptyDocument) {
			return nil, &common.MalformedRecordError{
				Position: filepath.Base(s.path),
				Field:    "xml",
				Err:      err,
			}
		}
		return nil, unreadable(s.path, err)
	}

	return []model.SourceRecord{{
		Origin:   model.OriginAuthoritative,
		Company:  company.ID,
		Position: model.Position{Source: s.path, Index: 1},
		Fields:   fields,
		Details:  details,
	}}, nil
}

var errEmptyDocument = errors.New("document has no root element")

func decodeInvoice(r io.Reader) (map[string]string, []string, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(label)
		if err != nil {
			return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
		}
		return enc.NewDecoder().Reader(input), nil
	}

	fields := make(map[string]string, len(invoicePaths))
	var details []string
	var stack []string
	var text strings.Builder
	sawRoot := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			sawRoot = true
			stack = append(stack, t.Name.Local)
			text.Reset()
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, nil, fmt.Errorf("unbalanced element %s", t.Name.Local)
			}
			value := strings.TrimSpace(text.String())
			if value != "" {
				for field, path := range invoicePaths {
					if _, seen := fields[field]; !seen && hasSuffix(stack, path) {
						fields[field] = value
					}
				}
				if hasSuffix(stack, detailPath) {
					details = append(details, value)
				}
			}
			stack = stack[:len(stack)-1]
			text.Reset()
		}
	}

	if !sawRoot {
		return nil, nil, errEmptyDocument
	}
	return fields, details, nil
}

func hasSuffix(stack, path []string) bool {
	if len(path) > len(stack) {
		return false
	}
	offset := len(stack) - len(path)
	for i, name := range path {
		if stack[offset+i] != name {
			return false
		}
	}
	return true
}
