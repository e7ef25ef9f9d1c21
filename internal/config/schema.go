package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

var ErrInvalidGroup = errors.New("invalid group configuration")

//go:embed group.schema.json
var groupSchemaJSON []byte

var (
	groupSchemaOnce sync.Once
	groupSchema     *jsonschema.Schema
	groupSchemaErr  error
)

// InvalidGroupError reports a group whose settings have the wrong shape.
type InvalidGroupError struct {
	Group string
	Err   error
}

func (e *InvalidGroupError) Error() string {
	return fmt.Sprintf("group %q is invalid: %v", e.Group, e.Err)
}

func (e *InvalidGroupError) Unwrap() error { return e.Err }

func (e *InvalidGroupError) Is(target error) bool { return target == ErrInvalidGroup }

func loadGroupSchema() (*jsonschema.Schema, error) {
	groupSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("group.schema.json", bytes.NewReader(groupSchemaJSON)); err != nil {
			groupSchemaErr = err
			return
		}
		groupSchema, groupSchemaErr = compiler.Compile("group.schema.json")
	})
	return groupSchema, groupSchemaErr
}

// validateGroupNode checks a group mapping against the group schema.
func validateGroupNode(node *yaml.Node) error {
	schema, err := loadGroupSchema()
	if err != nil {
		return fmt.Errorf("failed to compile group schema: %w", err)
	}

	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal group for schema validation: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("failed to normalize group for schema validation: %w", err)
	}
	return schema.Validate(v)
}
