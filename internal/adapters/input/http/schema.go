package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"salus-bridge/internal/domain/model"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const maxBodyBytes = 64 << 10

var (
	temperatureSchema = jsonschema.MustCompileString("temperature.json", `{
		"type": "object",
		"additionalProperties": false,
		"required": ["temperature"],
		"properties": {"temperature": {"type": "number"}}
	}`)
	modeSchema = jsonschema.MustCompileString("mode.json", `{
		"type": "object",
		"additionalProperties": false,
		"required": ["mode"],
		"properties": {"mode": {"type": "string"}}
	}`)
	presetSchema = jsonschema.MustCompileString("preset.json", `{
		"type": "object",
		"additionalProperties": false,
		"required": ["preset"],
		"properties": {"preset": {"type": "string"}}
	}`)
	zoneTemperatureSchema = jsonschema.MustCompileString("zone_temperature.json", `{
		"type": "object",
		"additionalProperties": false,
		"required": ["device_ids", "temperature"],
		"properties": {
			"device_ids": {"type": "array", "items": {"type": "string", "minLength": 1}},
			"temperature": {"type": "number"}
		}
	}`)
	zonePresetSchema = jsonschema.MustCompileString("zone_preset.json", `{
		"type": "object",
		"additionalProperties": false,
		"required": ["device_ids", "preset"],
		"properties": {
			"device_ids": {"type": "array", "items": {"type": "string", "minLength": 1}},
			"preset": {"type": "string"}
		}
	}`)

	quotedName = regexp.MustCompile(`'([^']+)'`)
)

type temperatureRequest struct {
	Temperature float64 `json:"temperature"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type presetRequest struct {
	Preset string `json:"preset"`
}

type zoneTemperatureRequest struct {
	DeviceIDs   []string `json:"device_ids"`
	Temperature float64  `json:"temperature"`
}

type zonePresetRequest struct {
	DeviceIDs []string `json:"device_ids"`
	Preset    string   `json:"preset"`
}

// decode validates the body against schema, then decodes it strictly into
// dst. Every failure is a *model.ValidationError.
func decode(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return &model.ValidationError{Field: "body", Message: "request body is too large or unreadable"}
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return &model.ValidationError{Field: "body", Message: "request body must be valid JSON"}
	}
	if err := schema.Validate(doc); err != nil {
		return schemaError(err)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &model.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

// schemaError reports the first leaf failure, naming the top-level field
// it concerns.
func schemaError(err error) error {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return &model.ValidationError{Field: "body", Message: err.Error()}
	}
	leaf := verr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}

	field := strings.TrimPrefix(leaf.InstanceLocation, "/")
	if i := strings.IndexByte(field, '/'); i >= 0 {
		field = field[:i]
	}
	if field == "" {
		if m := quotedName.FindStringSubmatch(leaf.Message); m != nil {
			field = m[1]
		} else {
			field = "body"
		}
	}
	return &model.ValidationError{Field: field, Message: leaf.Message}
}
