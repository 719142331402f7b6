package codec

import (
	"encoding/base64"
)

// Parser converts between a stored string and a typed value.
// Parse reports false when the text cannot be decoded.
type Parser interface {
	Parse(text string) (any, bool)
	Serialize(v any) string
}

// Validator is implemented by parsers that also check decoded values.
// A value that fails validation is treated like a decode failure.
type Validator interface {
	Validate(v any) bool
}

// JSON is the default parser: Serialize and Deserialize.
var JSON Parser = jsonParser{}

type jsonParser struct{}

func (jsonParser) Parse(text string) (any, bool) { return Deserialize(text) }
func (jsonParser) Serialize(v any) string        { return Serialize(v) }

// Base64JSON stores values as unpadded base64url-encoded JSON, which keeps
// the query string free of percent-escapes: ?filter=eyJjYXQiOiJ0ZWNoIn0
var Base64JSON Parser = base64JSONParser{}

type base64JSONParser struct{}

func (base64JSONParser) Parse(text string) (any, bool) {
	data, err := base64.RawURLEncoding.DecodeString(text)
	if err != nil {
		return nil, false
	}
	return Deserialize(string(data))
}

func (base64JSONParser) Serialize(v any) string {
	text := Serialize(v)
	if text == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(text))
}

// Decode runs p over text and applies p's validator when it has one.
func Decode(p Parser, text string) (any, bool) {
	v, ok := p.Parse(text)
	if !ok {
		return nil, false
	}
	if val, ok := p.(Validator); ok && !val.Validate(v) {
		return nil, false
	}
	return v, true
}
