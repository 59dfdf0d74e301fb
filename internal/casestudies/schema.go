package casestudies

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// collectionSchema describes the shape of cases.json. Business rules stay in
// Validate; this only catches structural mistakes such as a string where a
// list is expected, which would otherwise surface as a bare decode error.
const collectionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "slug":        {"type": "string"},
      "titleDe":     {"type": "string"},
      "titleEn":     {"type": "string"},
      "subtitleDe":  {"type": "string"},
      "subtitleEn":  {"type": "string"},
      "category":    {"type": "string"},
      "industry":    {"type": "string"},
      "heroImage":   {"type": "string"},
      "heroMedia":   {"type": "string"},
      "heroPoster":  {"type": "string"},
      "goalsDe":     {"$ref": "#/definitions/textList"},
      "goalsEn":     {"$ref": "#/definitions/textList"},
      "solutionDe":  {"$ref": "#/definitions/textList"},
      "solutionEn":  {"$ref": "#/definitions/textList"},
      "resultsDe":   {"$ref": "#/definitions/textList"},
      "resultsEn":   {"$ref": "#/definitions/textList"},
      "tech":        {"$ref": "#/definitions/textList"},
      "reviewers":   {"$ref": "#/definitions/textList"},
      "owner":       {"type": "string"},
      "status":      {"enum": ["", "draft", "inReview", "approved", "rejected", "published"]},
      "publishedAt": {"type": ["string", "null"], "format": "date-time"},
      "quote": {
        "type": ["object", "null"],
        "properties": {
          "textDe": {"type": "string"},
          "textEn": {"type": "string"},
          "author": {"type": "string"}
        },
        "additionalProperties": false
      }
    },
    "additionalProperties": false
  },
  "definitions": {
    "textList": {"type": ["array", "null"], "items": {"type": "string"}}
  }
}`

var collectionSchemaLoader = gojsonschema.NewStringLoader(collectionSchema)

// SchemaErrors checks a cases.json document against the collection schema
// and returns one line per violation, e.g. "0.tech: Invalid type".
func SchemaErrors(data []byte) ([]string, error) {
	result, err := gojsonschema.Validate(collectionSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedImport, err)
	}
	if result.Valid() {
		return nil, nil
	}
	out := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		out = append(out, e.String())
	}
	return out, nil
}
