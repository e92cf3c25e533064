package http

import (
	"embed"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Request body schemas, by file name under schemas/.
const (
	schemaNonce          = "nonce"
	schemaLogin          = "login"
	schemaMint           = "mint"
	schemaSigner         = "signer"
	schemaOwner          = "owner"
	schemaApproval       = "approval"
	schemaOptOut         = "opt_out"
	schemaNft            = "nft"
	schemaZoneParameters = "zone_parameters"
)

var (
	schemasOnce sync.Once
	schemas     map[string]*gojsonschema.Schema
	schemasErr  error
)

func loadSchemas() (map[string]*gojsonschema.Schema, error) {
	schemasOnce.Do(func() {
		entries, err := schemaFS.ReadDir("schemas")
		if err != nil {
			schemasErr = err
			return
		}
		loaded := make(map[string]*gojsonschema.Schema, len(entries))
		for _, entry := range entries {
			raw, err := schemaFS.ReadFile("schemas/" + entry.Name())
			if err != nil {
				schemasErr = err
				return
			}
			schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
			if err != nil {
				schemasErr = fmt.Errorf("schema %s: %w", entry.Name(), err)
				return
			}
			loaded[entry.Name()[:len(entry.Name())-len(".json")]] = schema
		}
		schemas = loaded
	})
	return schemas, schemasErr
}

// ValidationResult lists the schema violations of a request body.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ValidateBody checks body against the named request schema.
func ValidateBody(name string, body []byte) (ValidationResult, error) {
	loaded, err := loadSchemas()
	if err != nil {
		return ValidationResult{}, err
	}
	schema, ok := loaded[name]
	if !ok {
		return ValidationResult{}, fmt.Errorf("unknown schema: %s", name)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		// Not parseable as JSON.
		return ValidationResult{Valid: false, Errors: []string{err.Error()}}, nil
	}
	if result.Valid() {
		return ValidationResult{Valid: true}, nil
	}

	var errors []string
	for _, desc := range result.Errors() {
		errors = append(errors, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	return ValidationResult{Valid: false, Errors: errors}, nil
}
