package settings

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/artie-labs/medallion/lib/config/constants"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://schemas.medallion.dev/"

var (
	compileOnce     sync.Once
	compiledSchemas map[constants.StageKind]*jsonschema.Schema
	compileErr      error

	quotedNameRegex = regexp.MustCompile(`['"]([^'"]+)['"]`)
)

func compileSchemas() (map[constants.StageKind]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft7
		for _, name := range []string{"common", "silver", "gold"} {
			contents, err := schemaFS.ReadFile("schemas/" + name + ".json")
			if err != nil {
				compileErr = fmt.Errorf("failed to read schema %q: %w", name, err)
				return
			}

			if err = compiler.AddResource(schemaBaseURL+name+".json", bytes.NewReader(contents)); err != nil {
				compileErr = fmt.Errorf("failed to add schema %q: %w", name, err)
				return
			}
		}

		compiledSchemas = make(map[constants.StageKind]*jsonschema.Schema)
		for _, stage := range []constants.StageKind{constants.StageSilver, constants.StageGold} {
			schema, err := compiler.Compile(schemaBaseURL + string(stage) + ".json")
			if err != nil {
				compileErr = fmt.Errorf("failed to compile %s schema: %w", stage, err)
				return
			}
			compiledSchemas[stage] = schema
		}
	})

	return compiledSchemas, compileErr
}

// Validate checks [doc] against the schema of [stage] and reports every offending field.
func Validate(doc map[string]any, stage constants.StageKind) error {
	schemas, err := compileSchemas()
	if err != nil {
		return err
	}

	schema, isOk := schemas[stage]
	if !isOk {
		return fmt.Errorf("unknown stage %q", stage)
	}

	err = schema.Validate(doc)
	if err == nil {
		return nil
	}

	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return fmt.Errorf("failed to validate settings: %w", err)
	}

	return ValidationError{Fields: fieldErrors(validationErr)}
}

func fieldErrors(root *jsonschema.ValidationError) []FieldError {
	var fields []FieldError
	var walk func(*jsonschema.ValidationError)
	walk = func(err *jsonschema.ValidationError) {
		if len(err.Causes) > 0 {
			for _, cause := range err.Causes {
				walk(cause)
			}
			return
		}

		path := dottedPath(err.InstanceLocation)
		if strings.HasSuffix(err.KeywordLocation, "/required") {
			for _, match := range quotedNameRegex.FindAllStringSubmatch(err.Message, -1) {
				fields = append(fields, FieldError{Path: joinPath(path, match[1]), Message: "is required"})
			}
			return
		}

		if strings.HasSuffix(err.KeywordLocation, "/not") {
			fields = append(fields, FieldError{Path: rootPath(path), Message: "defines steps that belong to another stage"})
			return
		}

		message := err.Message
		if strings.HasSuffix(err.KeywordLocation, "/type") && strings.HasPrefix(message, "expected string, but got number") {
			message += ", quote the value to keep it as text"
		}
		fields = append(fields, FieldError{Path: rootPath(path), Message: message})
	}
	walk(root)

	slices.SortStableFunc(fields, func(a, b FieldError) int {
		return strings.Compare(a.Path, b.Path)
	})

	return slices.CompactFunc(fields, func(a, b FieldError) bool {
		return a == b
	})
}

// dottedPath converts a JSON pointer (`/step_raw_to_bronze/target`) into `step_raw_to_bronze.target`.
func dottedPath(pointer string) string {
	parts := strings.Split(strings.TrimPrefix(pointer, "/"), "/")
	for i, part := range parts {
		parts[i] = strings.NewReplacer("~1", "/", "~0", "~").Replace(part)
	}

	return strings.Join(parts, ".")
}

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}

	return parent + "." + child
}

func rootPath(path string) string {
	if path == "" {
		return "(root)"
	}

	return path
}
