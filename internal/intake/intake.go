// Package intake decodes plan payloads produced by an external plan
// generator into types.Plan values ready for repository.CreatePlan.
//
// Generated JSON is often slightly malformed (trailing commas, unquoted
// keys, a truncated closing bracket, a surrounding markdown fence). Decoding
// makes one repair attempt before giving up.
package intake

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/planstore/pkg/types"
)

// Format names a payload encoding.
type Format string

// Supported formats.
const (
	FormatAuto Format = "auto"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat converts s into a Format. The empty string means FormatAuto.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatAuto, nil
	case FormatAuto, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", types.ErrInvalidData, s)
	}
}

// Decoder decodes payloads, logging repairs.
type Decoder struct {
	logger *zap.Logger
}

// NewDecoder returns a Decoder. A nil logger discards output.
func NewDecoder(logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{logger: logger}
}

// Decode decodes data with a Decoder that does not log.
func Decode(data []byte, format Format) (types.Plan, error) {
	return NewDecoder(nil).Decode(data, format)
}

// Decode converts data into a Plan. FormatAuto treats data starting with
// '{' or '[' as JSON and anything else as YAML. A payload of the form
// {"plan": {...}} is unwrapped. All errors wrap types.ErrInvalidData.
func (d *Decoder) Decode(data []byte, format Format) (types.Plan, error) {
	body := stripFence(bytes.TrimSpace(data))
	if len(body) == 0 {
		return types.Plan{}, fmt.Errorf("%w: empty payload", types.ErrInvalidData)
	}

	if format == "" || format == FormatAuto {
		format = sniff(body)
	}

	var (
		raw json.RawMessage
		err error
	)
	switch format {
	case FormatJSON:
		raw, err = d.normalizeJSON(body)
	case FormatYAML:
		raw, err = yamlToJSON(body)
	default:
		err = fmt.Errorf("%w: unknown format %q", types.ErrInvalidData, format)
	}
	if err != nil {
		return types.Plan{}, err
	}

	var plan types.Plan
	if err := json.Unmarshal(unwrap(raw), &plan); err != nil {
		return types.Plan{}, fmt.Errorf("%w: decoding plan: %v", types.ErrInvalidData, err)
	}
	return plan, nil
}

// normalizeJSON returns body as valid JSON, repairing it once if needed.
func (d *Decoder) normalizeJSON(body []byte) (json.RawMessage, error) {
	if json.Valid(body) {
		return body, nil
	}
	repaired, err := jsonrepair.JSONRepair(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: malformed JSON could not be repaired: %v", types.ErrInvalidData, err)
	}
	if !json.Valid([]byte(repaired)) {
		return nil, fmt.Errorf("%w: repaired JSON is still invalid", types.ErrInvalidData)
	}
	d.logger.Info("repaired malformed plan JSON",
		zap.Int("original_len", len(body)),
		zap.Int("repaired_len", len(repaired)))
	return json.RawMessage(repaired), nil
}

// yamlToJSON decodes YAML and re-encodes it as JSON so that the Plan's JSON
// field names apply to both formats.
func yamlToJSON(body []byte) (json.RawMessage, error) {
	var doc any
	if err := yaml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: malformed YAML: %v", types.ErrInvalidData, err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: YAML is not representable as JSON: %v", types.ErrInvalidData, err)
	}
	return raw, nil
}

// unwrap returns the value under a lone "plan" key, or raw unchanged.
func unwrap(raw json.RawMessage) json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return raw
	}
	inner, ok := obj["plan"]
	if !ok || len(obj) != 1 {
		return raw
	}
	return inner
}

func sniff(body []byte) Format {
	switch body[0] {
	case '{', '[':
		return FormatJSON
	default:
		return FormatYAML
	}
}

// stripFence removes a surrounding markdown code fence such as ```json.
func stripFence(body []byte) []byte {
	if !bytes.HasPrefix(body, []byte("```")) {
		return body
	}
	nl := bytes.IndexByte(body, '\n')
	if nl < 0 {
		return nil
	}
	body = body[nl+1:]
	if end := bytes.LastIndex(body, []byte("```")); end >= 0 {
		body = body[:end]
	}
	return bytes.TrimSpace(body)
}
