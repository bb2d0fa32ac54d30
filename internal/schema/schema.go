// Package schema validates request payloads against embedded JSON Schema
// documents and publishes the entity schemas for tooling.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type Name string

const (
	Email  Name = "email"
	Tag    Name = "tag"
	Folder Name = "folder"
	Event  Name = "event"

	EmailCreate  Name = "email_create"
	BulkAction   Name = "bulk_action"
	TagCreate    Name = "tag_create"
	FolderCreate Name = "folder_create"
	EventCreate  Name = "event_create"
)

// catalogueOrder is the order entries appear in Catalogue.
var catalogueOrder = []Name{Email, Tag, Folder, Event, EmailCreate, BulkAction, TagCreate, FolderCreate, EventCreate}

const baseURL = "https://holomail.local/schemas/"

//go:embed schemas/*.json
var files embed.FS

// ErrMalformed reports a body that is not valid JSON.
var ErrMalformed = errors.New("malformed JSON body")

// ValidationError lists the ways a payload violates its schema.
type ValidationError struct {
	Schema  Name
	Details []Detail
}

type Detail struct {
	Location string `json:"loc"`
	Message  string `json:"msg"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, d.Location+": "+d.Message)
	}
	return fmt.Sprintf("%s: %s", e.Schema, strings.Join(parts, "; "))
}

type Entry struct {
	Name       string          `json:"name"`
	JSONSchema json.RawMessage `json:"json_schema"`
}

type Registry struct {
	compiled map[Name]*jsonschema.Schema
	raw      map[Name]json.RawMessage
	printer  *message.Printer
}

// Load compiles every embedded schema.
func Load() (*Registry, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat()

	raw := make(map[Name]json.RawMessage, len(catalogueOrder))
	for _, name := range catalogueOrder {
		data, err := files.ReadFile("schemas/" + string(name) + ".json")
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", name, err)
		}
		if err := compiler.AddResource(baseURL+string(name)+".json", doc); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
		raw[name] = json.RawMessage(data)
	}

	compiled := make(map[Name]*jsonschema.Schema, len(catalogueOrder))
	for _, name := range catalogueOrder {
		sch, err := compiler.Compile(baseURL + string(name) + ".json")
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		compiled[name] = sch
	}
	return &Registry{compiled: compiled, raw: raw, printer: message.NewPrinter(language.English)}, nil
}

// Validate checks body against the named schema. It returns ErrMalformed
// (wrapped) for unparsable JSON and *ValidationError for schema violations.
func (r *Registry) Validate(name Name, body []byte) error {
	sch, ok := r.compiled[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	err = sch.Validate(inst)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Errorf("validate %s: %w", name, err)
	}
	out := &ValidationError{Schema: name}
	r.collect(verr, &out.Details)
	return out
}

func (r *Registry) collect(verr *jsonschema.ValidationError, details *[]Detail) {
	if len(verr.Causes) == 0 {
		*details = append(*details, Detail{
			Location: "/" + strings.Join(verr.InstanceLocation, "/"),
			Message:  verr.ErrorKind.LocalizedString(r.printer),
		})
		return
	}
	for _, cause := range verr.Causes {
		r.collect(cause, details)
	}
}

// Catalogue returns every schema document, entities first.
func (r *Registry) Catalogue() []Entry {
	entries := make([]Entry, 0, len(catalogueOrder))
	for _, name := range catalogueOrder {
		entries = append(entries, Entry{Name: string(name), JSONSchema: r.raw[name]})
	}
	return entries
}
