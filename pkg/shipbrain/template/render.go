package template

import (
	"fmt"
	"maps"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var placeholder = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z_][a-zA-Z0-9_]*)*)\}`)

// Missing specifies how unresolved placeholders are handled.
type Missing int

const (
	// MissingKeep leaves the placeholder in place.
	MissingKeep Missing = iota

	// MissingEmpty replaces the placeholder with an empty string.
	MissingEmpty

	// MissingError fails the render with *UndefinedFieldError.
	MissingError
)

// Option configures a Renderer.
type Option func(*Renderer)

// WithMissing sets how unresolved placeholders are handled.
func WithMissing(m Missing) Option {
	return func(r *Renderer) {
		r.missing = m
	}
}

// Renderer expands ${field} placeholders.
// A Renderer is safe for concurrent use.
type Renderer struct {
	missing Missing
}

// NewRenderer creates a Renderer. The default keeps missing placeholders.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{missing: MissingKeep}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render expands every placeholder in s.
func (r *Renderer) Render(s string, vars map[string]any) (string, error) {
	if !strings.Contains(s, "${") {
		return s, nil
	}

	var missing []string
	out := placeholder.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if v, ok := resolve(name, vars); ok {
			return format(v)
		}
		switch r.missing {
		case MissingEmpty:
			return ""
		case MissingError:
			missing = append(missing, name)
		}
		return match
	})

	if len(missing) > 0 {
		return out, &UndefinedFieldError{Names: missing}
	}
	return out, nil
}

// RenderParams returns a copy of params with every string value rendered,
// descending into nested maps and string slices.
func (r *Renderer) RenderParams(params, vars map[string]any) (map[string]any, error) {
	if params == nil {
		return nil, nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		rendered, err := r.renderValue(v, vars)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", k, err)
		}
		out[k] = rendered
	}
	return out, nil
}

func (r *Renderer) renderValue(v any, vars map[string]any) (any, error) {
	switch val := v.(type) {
	case string:
		return r.Render(val, vars)
	case map[string]any:
		return r.RenderParams(val, vars)
	case []string:
		out := make([]string, len(val))
		for i, s := range val {
			rendered, err := r.Render(s, vars)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			rendered, err := r.renderValue(item, vars)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return v, nil
	}
}

func resolve(name string, vars map[string]any) (any, bool) {
	if v, ok := vars[name]; ok {
		return v, true
	}
	head, rest, found := strings.Cut(name, ".")
	if !found {
		return nil, false
	}
	sub, ok := vars[head].(map[string]any)
	if !ok {
		return nil, false
	}
	return resolve(rest, sub)
}

func format(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', 1, 64)
	case float32:
		return format(float64(val))
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// UndefinedFieldError lists placeholders with no matching field.
type UndefinedFieldError struct {
	Names []string
}

func (e *UndefinedFieldError) Error() string {
	if len(e.Names) == 1 {
		return "undefined field: " + e.Names[0]
	}
	return "undefined fields: " + strings.Join(e.Names, ", ")
}

var defaultRenderer = NewRenderer()

// Render expands placeholders in s, keeping unresolved ones.
func Render(s string, vars map[string]any) string {
	out, _ := defaultRenderer.Render(s, vars)
	return out
}

// RenderParams renders a copy of params, keeping unresolved placeholders.
func RenderParams(params, vars map[string]any) map[string]any {
	out, err := defaultRenderer.RenderParams(params, vars)
	if err != nil {
		return maps.Clone(params)
	}
	return out
}
