// Package enrichment turns disaster text into structured data with a
// generative model: a geocoded location, a social search query and a
// relevance-filtered post list.
package enrichment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/invopop/jsonschema"

	"disasterwatch/internal/detach"
	"disasterwatch/internal/errs"
	"disasterwatch/internal/ports"
)

type Service struct {
	model      ports.LanguageModel
	cache      ports.Cache
	background *detach.Group
}

func NewService(model ports.LanguageModel, cache ports.Cache, background *detach.Group) *Service {
	return &Service{
		model:      model,
		cache:      cache,
		background: background,
	}
}

var reflector = jsonschema.Reflector{
	AllowAdditionalProperties: false,
	DoNotReference:            true,
}

// schemaFor builds the response schema for v. Fields without omitempty are required.
func schemaFor(v any) *jsonschema.Schema {
	return reflector.Reflect(v)
}

// decodeStrict parses model text into out. It rejects malformed JSON, missing
// or null required fields, unknown fields, type mismatches and trailing data.
func decodeStrict(text string, schema *jsonschema.Schema, out any) error {
	raw := []byte(strings.TrimSpace(text))
	if !json.Valid(raw) {
		return errors.New("response is not valid JSON")
	}
	if err := checkRequired(raw, schema, "$"); err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after response value")
	}
	return nil
}

func checkRequired(raw json.RawMessage, schema *jsonschema.Schema, path string) error {
	if schema == nil {
		return nil
	}

	switch schema.Type {
	case "array":
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("%s: expected array", path)
		}
		for i, item := range items {
			if err := checkRequired(item, schema.Items, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case "object":
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
			return fmt.Errorf("%s: expected object", path)
		}
		for _, name := range schema.Required {
			v, ok := fields[name]
			if !ok || string(v) == "null" {
				return fmt.Errorf("%s.%s is required", path, name)
			}
		}
	}
	return nil
}

// upstream marks a collaborator failure, keeping a kind the collaborator already set.
func upstream(err error, msg string) error {
	if errs.KindOf(err) != nil {
		return errs.Wrap(err, msg)
	}
	return errs.Mark(errs.ErrUpstream, err, msg)
}

func invalidResponse(op string, err error) error {
	return errs.Mark(errs.ErrInvalidResponse, err, "decode "+op+" response")
}
