// Package schema holds the minimal schema model the storage layer consumes:
// a named collection, its fields and its indexes. Only the primary-key
// attribute is used by the translation and storage packages; field types are
// descriptive and never validated.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

// DefaultPrimaryKey is used when a schema declares no primary key.
const DefaultPrimaryKey = "_id"

// FieldType represents the basic field types supported by the schema system.
type FieldType string

const (
	FieldTypeString  FieldType = "string"  // Text data
	FieldTypeNumber  FieldType = "number"  // Numeric data
	FieldTypeInteger FieldType = "integer" // Numeric data
	FieldTypeBoolean FieldType = "boolean" // True/false values
	FieldTypeArray   FieldType = "array"   // Ordered list of items
	FieldTypeObject  FieldType = "object"  // Structured data with nested fields
	FieldTypeGeo     FieldType = "geo"     // GeoJSON or legacy coordinate pair
)

// IndexType represents index types.
type IndexType string

const (
	IndexTypeNormal  IndexType = "normal"  // General-purpose index
	IndexTypeUnique  IndexType = "unique"  // Unique index
	IndexTypePrimary IndexType = "primary" // Primary key index (implies unique)
	IndexTypeSpatial IndexType = "spatial" // Index for geometric or geographical data
)

// FieldDefinition defines a field within a schema.
type FieldDefinition struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Required    *bool     `json:"required,omitempty"`
	Unique      *bool     `json:"unique,omitempty"`
	Primary     *bool     `json:"primary,omitempty"`
	Description *string   `json:"description,omitempty"`
}

// IndexDefinition defines an index for optimizing queries or enforcing uniqueness.
type IndexDefinition struct {
	Name        string    `json:"name"`
	Fields      []string  `json:"fields"`
	Type        IndexType `json:"type"`
	Description *string   `json:"description,omitempty"`
}

// SchemaDefinition describes a collection.
type SchemaDefinition struct {
	Name        string                      `json:"name"`
	Version     string                      `json:"version"`
	Description *string                     `json:"description,omitempty"`
	Fields      map[string]*FieldDefinition `json:"fields"`
	Indexes     []IndexDefinition           `json:"indexes,omitempty"`
}

// FromJSON decodes and checks a schema definition. A schema names at most
// one primary key: a single-field primary index, a single field flagged
// primary, or both naming the same field.
func FromJSON(data []byte) (*SchemaDefinition, error) {
	var sc SchemaDefinition
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("schema must define a collection name")
	}

	var indexKey string
	for _, index := range sc.Indexes {
		if index.Type != IndexTypePrimary {
			continue
		}
		if len(index.Fields) != 1 {
			return nil, fmt.Errorf("primary index %q must cover exactly one field", index.Name)
		}
		if indexKey != "" && indexKey != index.Fields[0] {
			return nil, fmt.Errorf("schema declares more than one primary index: %q and %q", indexKey, index.Fields[0])
		}
		indexKey = index.Fields[0]
	}

	flagged := sc.primaryFields()
	if len(flagged) > 1 {
		return nil, fmt.Errorf("schema flags more than one primary field: %v", flagged)
	}
	if len(flagged) == 1 && indexKey != "" && flagged[0] != indexKey {
		return nil, fmt.Errorf("primary field %q does not match primary index field %q", flagged[0], indexKey)
	}
	return &sc, nil
}

// primaryFields returns the names of the fields flagged primary, sorted.
func (s *SchemaDefinition) primaryFields() []string {
	var names []string
	for key, field := range s.Fields {
		if field == nil || field.Primary == nil || !*field.Primary {
			continue
		}
		if field.Name != "" {
			names = append(names, field.Name)
		} else {
			names = append(names, key)
		}
	}
	sort.Strings(names)
	return names
}

// PrimaryKey returns the attribute used as the record's unique identifier:
// the field of the primary index, else the field flagged primary (the first
// by name when a hand-built schema flags several), else DefaultPrimaryKey.
func (s *SchemaDefinition) PrimaryKey() string {
	for _, index := range s.Indexes {
		if index.Type == IndexTypePrimary && len(index.Fields) > 0 {
			return index.Fields[0]
		}
	}
	if flagged := s.primaryFields(); len(flagged) > 0 {
		return flagged[0]
	}
	return DefaultPrimaryKey
}

// CollectionName returns the name of the backing collection.
func (s *SchemaDefinition) CollectionName() string {
	return s.Name
}
