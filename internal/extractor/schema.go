package extractor

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// featuresSchema 模型输出的边界校验。标量字段允许 null，年份类字段允许数字或字符串。
const featuresSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["skills", "experience"],
  "definitions": {
    "str": {"type": ["string", "null"]},
    "strOrNum": {"type": ["string", "number", "null"]},
    "strList": {"type": ["array", "null"], "items": {"type": ["string", "null"]}}
  },
  "properties": {
    "contact": {
      "type": ["object", "null"],
      "properties": {
        "name": {"$ref": "#/definitions/str"},
        "email": {"$ref": "#/definitions/str"},
        "phone": {"$ref": "#/definitions/strOrNum"},
        "linkedin": {"$ref": "#/definitions/str"}
      }
    },
    "skills": {"$ref": "#/definitions/strList"},
    "experience": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "role": {"$ref": "#/definitions/str"},
          "company": {"$ref": "#/definitions/str"},
          "start": {"$ref": "#/definitions/strOrNum"},
          "end": {"$ref": "#/definitions/strOrNum"},
          "description": {"$ref": "#/definitions/str"},
          "isCurrent": {"type": ["boolean", "null"]}
        }
      }
    },
    "totalExperienceYears": {"$ref": "#/definitions/strOrNum"},
    "education": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "degree": {"$ref": "#/definitions/str"},
          "field": {"$ref": "#/definitions/str"},
          "institution": {"$ref": "#/definitions/str"},
          "graduationYear": {"$ref": "#/definitions/strOrNum"}
        }
      }
    },
    "certifications": {"$ref": "#/definitions/strList"},
    "courses": {"$ref": "#/definitions/strList"},
    "projects": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "properties": {
          "name": {"$ref": "#/definitions/str"},
          "description": {"$ref": "#/definitions/str"},
          "technologies": {"$ref": "#/definitions/strList"}
        }
      }
    },
    "summary": {"$ref": "#/definitions/str"},
    "score": {"$ref": "#/definitions/strOrNum"}
  }
}`

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(featuresSchema))
	if err != nil {
		panic(fmt.Sprintf("extractor: invalid features schema: %v", err))
	}
	return s
}

// validateJSON 返回所有 schema 违例，合法时返回 nil
func validateJSON(doc string) error {
	res, err := compiledSchema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return err
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("schema: %s", strings.Join(msgs, "; "))
}
