package llm

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/xeipuuv/gojsonschema"

	"ingrevia/internal/core"
)

// DecodeStatus tags a decode result
type DecodeStatus int

const (
	Parsed DecodeStatus = iota + 1
	Malformed
)

func (s DecodeStatus) String() string {
	switch s {
	case Parsed:
		return "parsed"
	case Malformed:
		return "malformed"
	default:
		return "undecoded"
	}
}

// SlotPayload is the raw slot triple returned by the model. Values are not yet
// mapped onto the closed label sets.
type SlotPayload struct {
	SkinType string
	Concerns []string
	Category string
}

// UnknownPayload is the all-unknown triple
func UnknownPayload() SlotPayload {
	return SlotPayload{SkinType: core.Unknown, Category: core.Unknown}
}

// SlotDecode is Parsed with Slots, or Malformed with Err wrapping core.ErrGenerationParse
type SlotDecode struct {
	Status DecodeStatus
	Slots  SlotPayload
	Err    error
}

// OK reports a Parsed result
func (d SlotDecode) OK() bool {
	return d.Status == Parsed
}

const slotSchemaJSON = `{
  "type": "object",
  "properties": {
    "skin_type": {"type": ["string", "null"]},
    "category": {"type": ["string", "null"]},
    "concerns": {
      "oneOf": [
        {"type": "string"},
        {"type": "null"},
        {"type": "array", "items": {"type": ["string", "null"]}}
      ]
    }
  }
}`

var slotSchema = mustSchema(slotSchemaJSON)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid slot schema: %v", err))
	}
	return schema
}

// ExtractJSONObject returns the text between the first '{' and the last '}'
func ExtractJSONObject(content string) (string, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || start > end {
		return "", false
	}
	return content[start : end+1], true
}

// DecodeSlots decodes model output of the form
// {"skin_type": "...", "concerns": [...], "category": "..."}.
// It never panics; anything unusable is Malformed.
func DecodeSlots(content string) (out SlotDecode) {
	defer func() {
		if r := recover(); r != nil {
			out = malformed(fmt.Errorf("decoder panic: %v", r))
		}
	}()

	raw, ok := ExtractJSONObject(content)
	if !ok {
		return malformed(fmt.Errorf("no JSON object in output"))
	}

	var doc any
	if err := sonic.UnmarshalString(raw, &doc); err != nil {
		return malformed(err)
	}

	result, err := slotSchema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return malformed(err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return malformed(fmt.Errorf("schema: %s", strings.Join(msgs, "; ")))
	}

	obj, _ := doc.(map[string]any)
	payload := SlotPayload{
		SkinType: stringField(obj["skin_type"]),
		Category: stringField(obj["category"]),
	}
	switch v := obj["concerns"].(type) {
	case string:
		payload.Concerns = splitLabels(v)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				payload.Concerns = append(payload.Concerns, splitLabels(s)...)
			}
		}
	}
	return SlotDecode{Status: Parsed, Slots: payload}
}

func malformed(err error) SlotDecode {
	return SlotDecode{
		Status: Malformed,
		Slots:  UnknownPayload(),
		Err:    fmt.Errorf("%w: %v", core.ErrGenerationParse, err),
	}
}

func stringField(v any) string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return core.Unknown
	}
	return strings.TrimSpace(s)
}

func splitLabels(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '，' || r == '\n' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
