package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// Decode parses a JSON draft.
func Decode(data []byte) (*Draft, error) {
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &d, nil
}

// LoadFile reads a draft from a .json, .yaml/.yml or .cue file.
//
// YAML and CUE files are converted to JSON first so that every format
// goes through the same lenient Draft decoding.
func LoadFile(path string) (*Draft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
	case ".cue":
		data, err = cueToJSON(path, data)
	default:
		return nil, fmt.Errorf("read plan %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}
	return Decode(data)
}

func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	out, err := json.Marshal(jsonCompatible(v))
	if err != nil {
		return nil, fmt.Errorf("convert yaml: %w", err)
	}
	return out, nil
}

// jsonCompatible rewrites map[any]any nodes, which encoding/json rejects.
func jsonCompatible(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = jsonCompatible(val)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = jsonCompatible(val)
		}
		return m
	case []any:
		for i, val := range t {
			t[i] = jsonCompatible(val)
		}
		return t
	default:
		return v
	}
}

func cueToJSON(path string, data []byte) ([]byte, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile cue: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate cue: %w", err)
	}
	out, err := v.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("export cue: %w", err)
	}
	return out, nil
}

// Schema returns the JSON Schema of the canonical Plan.
func Schema() *jsonschema.Schema {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return r.Reflect(&Plan{})
}
