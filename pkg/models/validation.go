package models

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

const nameSchema = `{"type": "string", "minLength": 1, "pattern": "\\S"}`

const authorSchema = `{
	"type": "object",
	"required": ["firstName", "lastName"],
	"properties": {
		"firstName": ` + nameSchema + `,
		"lastName": ` + nameSchema + `
	}
}`

var newPostSchema = mustSchema(`{
	"type": "object",
	"required": ["title", "content", "author"],
	"properties": {
		"title": ` + nameSchema + `,
		"content": ` + nameSchema + `,
		"author": ` + authorSchema + `
	}
}`)

var postUpdateSchema = mustSchema(`{
	"type": "object",
	"properties": {
		"id": {"type": "string"},
		"title": ` + nameSchema + `,
		"content": ` + nameSchema + `,
		"author": ` + authorSchema + `
	}
}`)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("invalid request schema: %v", err))
	}
	return schema
}

// ValidationError reports a missing or malformed request field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ParseNewPost validates and decodes a POST /posts body
func ParseNewPost(data []byte) (*NewPost, error) {
	if err := validate(newPostSchema, data); err != nil {
		return nil, err
	}
	var post NewPost
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	return &post, nil
}

// ParsePostUpdate validates and decodes a PUT /posts/{id} body
func ParsePostUpdate(data []byte) (*PostUpdate, error) {
	if err := validate(postUpdateSchema, data); err != nil {
		return nil, err
	}
	var update PostUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	if update.Empty() {
		return nil, &ValidationError{Reason: "at least one of title, content, author is required"}
	}
	return &update, nil
}

func validate(schema *gojsonschema.Schema, data []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return &ValidationError{Reason: "malformed JSON body"}
	}
	if result.Valid() {
		return nil
	}
	errs := make([]*ValidationError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		errs = append(errs, fromResultError(re))
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs[0]
}

func fromResultError(re gojsonschema.ResultError) *ValidationError {
	field := re.Field()
	if field == gojsonschema.STRING_CONTEXT_ROOT {
		field = ""
	}
	if re.Type() == "required" {
		if prop, ok := re.Details()["property"].(string); ok {
			if field != "" {
				field += "."
			}
			field += prop
			return &ValidationError{Field: field, Reason: "is required"}
		}
	}
	return &ValidationError{Field: field, Reason: re.Description()}
}
