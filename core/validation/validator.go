// Package validation checks upload payloads against JSON schemas before
// they reach the domain model.
package validation

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/xeipuuv/gojsonschema"

	"healthledger/core/errs"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// SchemaDirEnv points at a directory with replacement schema files of the
// same names.
const SchemaDirEnv = "HEALTHLEDGER_SCHEMA_DIR"

const (
	SchemaPHI     = "phi_v1.json"
	SchemaReading = "reading_v1.json"
)

// Validator holds compiled schemas.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// New compiles the built-in schemas, or the overrides in SchemaDirEnv.
func New() (*Validator, error) {
	v := &Validator{schemas: make(map[string]*gojsonschema.Schema)}
	dir := os.Getenv(SchemaDirEnv)
	for _, name := range []string{SchemaPHI, SchemaReading} {
		var (
			raw []byte
			err error
		)
		if dir != "" {
			raw, err = os.ReadFile(filepath.Join(dir, name))
		} else {
			raw, err = schemaFS.ReadFile("schemas/" + name)
		}
		if err != nil {
			return nil, fmt.Errorf("load schema %s: %w", name, err)
		}
		s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		v.schemas[name] = s
	}
	return v, nil
}

// ValidatePHI checks a PHI upload document.
func (v *Validator) ValidatePHI(doc interface{}) error {
	return v.validate(SchemaPHI, "phi", doc)
}

// ValidateReading checks a PPPs upload document.
func (v *Validator) ValidateReading(doc interface{}) error {
	return v.validate(SchemaReading, "reading", doc)
}

func (v *Validator) validate(schema, subject string, doc interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return &errs.ValidationError{Subject: subject, Problems: []string{err.Error()}}
	}
	res, err := v.schemas[schema].Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return &errs.ValidationError{Subject: subject, Problems: []string{err.Error()}}
	}
	if res.Valid() {
		return nil
	}
	problems := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		problems = append(problems, e.String())
	}
	sort.Strings(problems)
	return &errs.ValidationError{Subject: subject, Problems: problems}
}
