package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"
)

const maxRenderPasses = 5

// Parse decodes a YAML (or JSON) document into a mapping. Values are normalized to the shapes a JSON decoder
// would produce, numbers become [json.Number] so that they are validated and rendered verbatim.
func Parse(raw []byte) (map[string]any, error) {
	return parse("raw", raw)
}

func parse(stage string, raw []byte) (map[string]any, error) {
	var decoded any
	if err := yaml.Unmarshal(raw, &decoded); err != nil {
		return nil, MalformedDocumentError{Stage: stage, err: err}
	}

	doc, isOk := normalize(decoded).(map[string]any)
	if !isOk {
		return nil, MalformedDocumentError{Stage: stage, err: fmt.Errorf("expected a mapping, got %T", decoded)}
	}

	return doc, nil
}

func normalize(value any) any {
	switch castedValue := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(castedValue))
		for key, val := range castedValue {
			out[key] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(castedValue))
		for key, val := range castedValue {
			out[fmt.Sprint(key)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(castedValue))
		for i, val := range castedValue {
			out[i] = normalize(val)
		}
		return out
	case int:
		return json.Number(strconv.Itoa(castedValue))
	case int64:
		return json.Number(strconv.FormatInt(castedValue, 10))
	case uint64:
		return json.Number(strconv.FormatUint(castedValue, 10))
	case float64:
		return json.Number(formatFloat(castedValue))
	case time.Time:
		return castedValue.Format(time.RFC3339)
	default:
		return castedValue
	}
}

// formatFloat keeps the decimal point of integral values, so `1.0` is not reported back as `1`.
func formatFloat(value float64) string {
	formatted := strconv.FormatFloat(value, 'f', -1, 64)
	if math.IsInf(value, 0) || math.IsNaN(value) || strings.Contains(formatted, ".") {
		return formatted
	}
	return formatted + ".0"
}

// Render executes [raw] as a template against its own values until the output stops changing, so fields may be
// derived from other (possibly templated) fields, e.g. `path: "{{ .datalake_path }}/{{ .table }}"`.
// Missing keys are errors.
func Render(raw []byte) ([]byte, error) {
	current := raw
	for range maxRenderPasses {
		doc, err := parse("raw", current)
		if err != nil {
			return nil, err
		}

		rendered, err := execute("settings", string(current), doc)
		if err != nil {
			return nil, TemplateRenderError{err: err}
		}

		if bytes.Equal(rendered, current) {
			return rendered, nil
		}

		current = rendered
	}

	return nil, TemplateRenderError{err: fmt.Errorf("template did not converge after %d passes", maxRenderPasses)}
}

func execute(name, text string, data map[string]any) ([]byte, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Funcs(funcMap).Parse(text)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
