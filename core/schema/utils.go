package schema

// FindField returns the field definition with the given name, or nil.
func (s *SchemaDefinition) FindField(name string) *FieldDefinition {
	if field, ok := s.Fields[name]; ok {
		return field
	}
	for _, field := range s.Fields {
		if field != nil && field.Name == name {
			return field
		}
	}
	return nil
}
