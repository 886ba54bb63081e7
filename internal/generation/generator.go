package generation

import (
	"context"
	"time"
)

// Profile names
const (
	ProfileShallow = "shallow"
	ProfileDeep    = "deep"
)

// Profile selects the model and call mode for a kind of report.
type Profile struct {
	Name    string
	Model   string
	Timeout time.Duration
	// Stream collects the response incrementally instead of waiting for
	// one buffered reply. Both modes yield one decoded value.
	Stream bool
}

// Part is one piece of prompt content: text, or inline bytes such as a PDF.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// TextPart returns a text prompt part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// PDFPart returns an inline PDF prompt part.
func PDFPart(data []byte) Part {
	return Part{Data: data, MIMEType: "application/pdf"}
}

// Request is a single generation call.
type Request struct {
	Parts []Part
	// Schema is the JSON schema the response must follow, already stripped
	// of keys the model API rejects. Nil means free-form JSON.
	Schema  map[string]any
	Profile Profile
}

// Result is the outcome of a successful call.
type Result struct {
	// Raw is the response text exactly as received, kept for diagnostics.
	Raw string
	// Decoded is Raw parsed as JSON.
	Decoded any
}

// Generator defines the interface for producing structured reports.
// This interface serves as a boundary between the application core and
// external AI/LLM services.
type Generator interface {
	// Generate performs one call. Implementations must honor ctx
	// cancellation and return errors wrapping ErrTransientFailure for
	// anything a retry might fix.
	Generate(ctx context.Context, req Request) (*Result, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (*Result, error)

// Generate calls f(ctx, req).
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}
