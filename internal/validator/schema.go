package validator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"

	"github.com/rezonia/isdoc-export/internal/isdoc"
	"github.com/rezonia/isdoc-export/internal/logger"
)

// SchemaSource provides the XSD text. *schema.Cache satisfies it.
type SchemaSource interface {
	Get(ctx context.Context) ([]byte, error)
}

// Declaration is one child of the Invoice content model
type Declaration struct {
	Name     string
	Required bool
}

// SchemaOption configures a Schema validator
type SchemaOption func(*Schema)

// WithSchemaLogger sets the logger
func WithSchemaLogger(l zerolog.Logger) SchemaOption {
	return func(s *Schema) {
		s.logger = logger.WithComponent(l, "schema-validator")
	}
}

// Schema checks the top-level Invoice children against the content model
// declared in the XSD: every mandatory element present, no undeclared
// elements, declaration order kept. Element types are not checked.
type Schema struct {
	source SchemaSource
	logger zerolog.Logger

	mu      sync.Mutex
	model   []Declaration
	modelOK bool
}

// NewSchema creates a schema validator reading the XSD from source
func NewSchema(source SchemaSource, opts ...SchemaOption) *Schema {
	s := &Schema{
		source: source,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Validator
func (*Schema) Name() string {
	return "schema"
}

// Validate implements Validator. The error return covers an unavailable or
// unreadable XSD.
func (s *Schema) Validate(ctx context.Context, content []byte) (*Result, error) {
	declared, err := s.contentModel(ctx)
	if err != nil {
		return nil, err
	}

	result := NewResult(s.Name())

	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = isdoc.CharsetReader
	if err := doc.ReadFromBytes(content); err != nil {
		result.AddError("%s", err.Error())
		return result, nil
	}

	root := doc.Root()
	if root == nil || root.Tag != "Invoice" {
		result.AddError("Root element must be Invoice")
		return result, nil
	}

	index := make(map[string]int, len(declared))
	for i, d := range declared {
		index[d.Name] = i
	}

	seen := make(map[string]bool)
	last := -1
	for _, child := range root.ChildElements() {
		i, ok := index[child.Tag]
		if !ok {
			result.AddError("Unexpected element: %s", child.Tag)
			continue
		}
		if i < last {
			result.AddError("Element out of order: %s must precede %s", child.Tag, declared[last].Name)
		} else {
			last = i
		}
		seen[child.Tag] = true
	}

	for _, d := range declared {
		if d.Required && !seen[d.Name] {
			result.AddError(MsgMissingElement, d.Name)
		}
	}

	return result, nil
}

// contentModel reads the Invoice sequence once per validator. A failed read
// is retried on the next call.
func (s *Schema) contentModel(ctx context.Context) ([]Declaration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.modelOK {
		return s.model, nil
	}

	xsd, err := s.source.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("schema unavailable: %w", err)
	}

	declared, err := ParseContentModel(xsd)
	if err != nil {
		return nil, err
	}

	s.model, s.modelOK = declared, true
	s.logger.Debug().Int(logger.FieldCount, len(declared)).Msg("Invoice content model loaded")
	return declared, nil
}

// ParseContentModel extracts the ordered child declarations of the Invoice
// element from an XSD. Both an inline complexType and a named type
// reference are understood.
func ParseContentModel(xsd []byte) ([]Declaration, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xsd); err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "schema" {
		return nil, fmt.Errorf("failed to read schema: root element is not xs:schema")
	}

	invoice := root.FindElement("./element[@name='Invoice']")
	if invoice == nil {
		return nil, fmt.Errorf("schema does not declare an Invoice element")
	}

	complexType := invoice.FindElement("./complexType")
	if complexType == nil {
		typeName := localName(invoice.SelectAttrValue("type", ""))
		if typeName == "" {
			return nil, fmt.Errorf("schema gives no content model for Invoice")
		}
		complexType = root.FindElement(fmt.Sprintf("./complexType[@name='%s']", typeName))
		if complexType == nil {
			return nil, fmt.Errorf("schema does not define type %s", typeName)
		}
	}

	sequence := complexType.FindElement("./sequence")
	if sequence == nil {
		return nil, fmt.Errorf("content model of Invoice is not a sequence")
	}

	var declared []Declaration
	for _, el := range sequence.SelectElements("element") {
		name := el.SelectAttrValue("name", "")
		if name == "" {
			name = localName(el.SelectAttrValue("ref", ""))
		}
		if name == "" {
			continue
		}
		declared = append(declared, Declaration{
			Name:     name,
			Required: el.SelectAttrValue("minOccurs", "1") != "0",
		})
	}

	if len(declared) == 0 {
		return nil, fmt.Errorf("content model of Invoice is empty")
	}
	return declared, nil
}

func localName(qname string) string {
	if i := strings.LastIndexByte(qname, ':'); i >= 0 {
		return qname[i+1:]
	}
	return qname
}
