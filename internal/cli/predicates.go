package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/asaidimu/go-odm/core/query"
	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"
)

// PredicateFile is the YAML form of a query: a predicate sequence and an
// optional list of update directives.
//
//	where:
//	  - {attribute: age, operator: gte, value: 18}
//	update:
//	  - {attribute: visits, operator: inc, value: 1}
type PredicateFile struct {
	Where  []query.Predicate `yaml:"where"`
	Update []query.Directive `yaml:"update"`
}

// LoadPredicateFile reads and parses a predicate file.
func LoadPredicateFile(path string) (*PredicateFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read predicate file: %w", err)
	}
	return ParsePredicateFile(data)
}

// ParsePredicateFile parses the YAML form of a query.
func ParsePredicateFile(data []byte) (*PredicateFile, error) {
	var file PredicateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse predicate file: %w", err)
	}
	for i, p := range file.Where {
		if _, err := query.ParseOperator(string(p.Operator)); err != nil {
			return nil, fmt.Errorf("where[%d]: %w", i, err)
		}
	}
	for i, d := range file.Update {
		if _, err := query.ParseOperator(string(d.Operator)); err != nil {
			return nil, fmt.Errorf("update[%d]: %w", i, err)
		}
	}
	return &file, nil
}

// ParsePredicate parses the inline form "attribute operator value". The
// value is read as a YAML scalar or flow collection, so 18 is a number,
// true a boolean and [1, 2] a list.
func ParsePredicate(s string) (query.Predicate, error) {
	attribute, op, value, err := splitClause(s)
	if err != nil {
		return query.Predicate{}, err
	}
	return query.NewPredicate(attribute, op, value), nil
}

// ParseDirective parses the inline form "attribute operator value" of an
// update directive.
func ParseDirective(s string) (query.Directive, error) {
	attribute, op, value, err := splitClause(s)
	if err != nil {
		return query.Directive{}, err
	}
	return query.NewDirective(attribute, op, value), nil
}

func splitClause(s string) (string, query.Operator, any, error) {
	fields := strings.Fields(s)
	if len(fields) < 3 {
		return "", "", nil, fmt.Errorf("invalid clause %q: expected \"attribute operator value\"", s)
	}
	op, err := query.ParseOperator(fields[1])
	if err != nil {
		return "", "", nil, err
	}

	// Keep the original spacing of the value.
	raw := strings.TrimSpace(s)
	raw = strings.TrimSpace(strings.TrimPrefix(raw, fields[0]))
	raw = strings.TrimSpace(strings.TrimPrefix(raw, fields[1]))

	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return "", "", nil, fmt.Errorf("invalid value %q: %w", raw, err)
	}
	return fields[0], op, value, nil
}

// ParseDocument parses a record given as MongoDB extended JSON.
func ParseDocument(data []byte) (bson.M, error) {
	var doc bson.M
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}
	return doc, nil
}
