package settings

import (
	"embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/artie-labs/medallion/lib/config/constants"
	"github.com/artie-labs/medallion/lib/maputil"
)

//go:embed defaults/*.yaml.tmpl
var defaultsFS embed.FS

var funcMap = template.FuncMap{
	// get looks up a dotted path in the document, returning [defaultValue] when it is missing or empty.
	"get": func(doc map[string]any, path string, defaultValue any) any {
		val, isOk := maputil.Lookup(doc, strings.Split(path, ".")...)
		if !isOk || val == nil || val == "" {
			return defaultValue
		}
		return val
	},
	"quote": func(val any) string {
		return strconv.Quote(fmt.Sprint(val))
	},
	// join builds a storage path, it tolerates trailing slashes on any part.
	"join": func(parts ...any) string {
		trimmed := make([]string, 0, len(parts))
		for i, part := range parts {
			str := fmt.Sprint(part)
			if i == 0 {
				str = strings.TrimRight(str, "/")
			} else {
				str = strings.Trim(str, "/")
			}
			trimmed = append(trimmed, str)
		}
		return strings.Join(trimmed, "/")
	},
	"default": func(defaultValue, val any) any {
		if val == nil || val == "" {
			return defaultValue
		}
		return val
	},
}

// Defaults renders the embedded default template of [stage] against a validated document.
func Defaults(doc map[string]any, stage constants.StageKind) (map[string]any, error) {
	name := fmt.Sprintf("defaults/%s.yaml.tmpl", stage)
	text, err := defaultsFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("no defaults for stage %q: %w", stage, err)
	}

	rendered, err := execute(name, string(text), doc)
	if err != nil {
		return nil, TemplateRenderError{err: err}
	}

	return parse("defaults", rendered)
}

// Reconcile overlays the user's document on top of the defaults, explicit user values always win.
func Reconcile(defaults, doc map[string]any) map[string]any {
	return maputil.DeepMerge(defaults, doc)
}
