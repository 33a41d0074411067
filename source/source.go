// Package source decodes external documents into the map[string]any shape
// kim Mappers marshal from, and encodes their output.
//
// JSON input is read token by token with goccy/go-json so that numbers keep
// their literal text (json.Number) and duplicate keys are reported instead of
// silently overwritten. YAML input goes through gopkg.in/yaml.v3.
package source

import (
	"bytes"
	stdjson "encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	j "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/reoring/kim"
)

// CodeDuplicateKey is the Issue code reported for a repeated object key.
const CodeDuplicateKey = "duplicate_key"

// DefaultMaxDepth bounds object/array nesting when no limit is configured.
const DefaultMaxDepth = 256

// ErrTooLarge is returned when input exceeds the configured byte limit.
var ErrTooLarge = errors.New("source: input too large")

// Option tunes decoding.
type Option func(*config)

type config struct {
	maxDepth       int
	maxBytes       int64
	allowDuplicate bool
}

// WithMaxDepth limits nesting depth. Zero or less restores the default.
func WithMaxDepth(n int) Option { return func(c *config) { c.maxDepth = n } }

// WithMaxBytes caps the input size. Zero disables the cap.
func WithMaxBytes(n int64) Option { return func(c *config) { c.maxBytes = n } }

// AllowDuplicateKeys makes the last occurrence of a repeated key win.
func AllowDuplicateKeys() Option { return func(c *config) { c.allowDuplicate = true } }

func newConfig(opts []Option) config {
	c := config{maxDepth: DefaultMaxDepth}
	for _, o := range opts {
		o(&c)
	}
	if c.maxDepth <= 0 {
		c.maxDepth = DefaultMaxDepth
	}
	return c
}

// JSONBytes decodes a JSON object.
func JSONBytes(b []byte, opts ...Option) (map[string]any, error) {
	c := newConfig(opts)
	if c.maxBytes > 0 && int64(len(b)) > c.maxBytes {
		return nil, ErrTooLarge
	}
	return decodeJSON(bytes.NewReader(b), c)
}

// JSONReader decodes a JSON object read from r.
func JSONReader(r io.Reader, opts ...Option) (map[string]any, error) {
	c := newConfig(opts)
	if c.maxBytes > 0 {
		data, err := io.ReadAll(io.LimitReader(r, c.maxBytes+1))
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > c.maxBytes {
			return nil, ErrTooLarge
		}
		r = bytes.NewReader(data)
	}
	return decodeJSON(r, c)
}

// YAMLBytes decodes a YAML mapping. Non-string keys are dropped.
func YAMLBytes(b []byte, opts ...Option) (map[string]any, error) {
	c := newConfig(opts)
	if c.maxBytes > 0 && int64(len(b)) > c.maxBytes {
		return nil, ErrTooLarge
	}
	var v any
	if err := yaml.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("source: yaml: %w", err)
	}
	m := yamlToStringMap(v)
	if m == nil {
		return nil, fmt.Errorf("source: yaml: expected a mapping at the top level, got %T", v)
	}
	return m, nil
}

// Bytes picks the decoder from the file name extension: .yaml and .yml are
// YAML, everything else is JSON.
func Bytes(name string, b []byte, opts ...Option) (map[string]any, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return YAMLBytes(b, opts...)
	}
	return JSONBytes(b, opts...)
}

// EncodeJSON writes v as indented JSON followed by a newline.
func EncodeJSON(w io.Writer, v any) error {
	b, err := j.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("source: encode: %w", err)
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

type decoder struct {
	dec *j.Decoder
	cfg config
	iss kim.Issues
}

func decodeJSON(r io.Reader, c config) (map[string]any, error) {
	dec := j.NewDecoder(r)
	dec.UseNumber()
	d := &decoder{dec: dec, cfg: c}

	v, err := d.value("", 0)
	if err != nil {
		return nil, err
	}
	if _, err := d.dec.Token(); err != io.EOF {
		if err == nil {
			return nil, errors.New("source: json: trailing data after top-level value")
		}
		return nil, fmt.Errorf("source: json: %w", err)
	}
	if len(d.iss) > 0 {
		return nil, d.iss
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("source: json: expected an object at the top level, got %T", v)
	}
	return m, nil
}

func (d *decoder) value(path string, depth int) (any, error) {
	tok, err := d.dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("source: json: %w", io.ErrUnexpectedEOF)
		}
		return nil, fmt.Errorf("source: json: %w", err)
	}
	switch t := tok.(type) {
	case j.Delim:
		if depth >= d.cfg.maxDepth {
			return nil, fmt.Errorf("source: json: max depth %d exceeded at %q", d.cfg.maxDepth, path)
		}
		switch t {
		case '{':
			return d.object(path, depth+1)
		case '[':
			return d.array(path, depth+1)
		}
		return nil, fmt.Errorf("source: json: unexpected %q at %q", t, path)
	case j.Number:
		return stdjson.Number(t), nil
	case float64:
		return stdjson.Number(strconv.FormatFloat(t, 'g', -1, 64)), nil
	default:
		// string, bool or nil
		return t, nil
	}
}

func (d *decoder) object(path string, depth int) (map[string]any, error) {
	out := map[string]any{}
	for d.dec.More() {
		tok, err := d.dec.Token()
		if err != nil {
			return nil, fmt.Errorf("source: json: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("source: json: expected key at %q", path)
		}
		child := path + "/" + escape(key)
		if _, dup := out[key]; dup && !d.cfg.allowDuplicate {
			d.iss = kim.AppendIssues(d.iss, kim.Issue{
				Path:    child,
				Field:   key,
				Code:    CodeDuplicateKey,
				Message: "duplicate key " + strconv.Quote(key),
			})
		}
		v, err := d.value(child, depth)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	if _, err := d.dec.Token(); err != nil {
		return nil, fmt.Errorf("source: json: %w", err)
	}
	return out, nil
}

func (d *decoder) array(path string, depth int) ([]any, error) {
	out := []any{}
	for d.dec.More() {
		v, err := d.value(path+"/"+strconv.Itoa(len(out)), depth)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if _, err := d.dec.Token(); err != nil {
		return nil, fmt.Errorf("source: json: %w", err)
	}
	return out, nil
}

func escape(tok string) string {
	if !strings.ContainsAny(tok, "~/") {
		return tok
	}
	return strings.NewReplacer("~", "~0", "/", "~1").Replace(tok)
}

func yamlToStringMap(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = yamlNormalize(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = yamlNormalize(vv)
		}
		return out
	default:
		return nil
	}
}

func yamlNormalize(v any) any {
	switch t := v.(type) {
	case map[string]any, map[any]any:
		return yamlToStringMap(t)
	case []any:
		arr := make([]any, len(t))
		for i := range t {
			arr[i] = yamlNormalize(t[i])
		}
		return arr
	default:
		return v
	}
}
