// Package schema describes the layout of a single table: its keys, its GSIs
// and the entity types stored in it. The description is plain data, printed
// as YAML by `crm table schema`.
package schema

import (
	"reflect"
	"strings"

	"github.com/acksell/crm/dynamodb/table"
)

// Schema is the root type containing all table definitions.
type Schema struct {
	Tables []Table `yaml:"tables" json:"tables"`
}

// Table describes a DynamoDB table structure with its entities.
type Table struct {
	Name         string   `yaml:"name" json:"name"`
	PartitionKey KeyDef   `yaml:"partitionKey" json:"partitionKey"`
	SortKey      *KeyDef  `yaml:"sortKey,omitempty" json:"sortKey,omitempty"`
	GSIs         []GSI    `yaml:"gsis,omitempty" json:"gsis,omitempty"`
	Entities     []Entity `yaml:"entities,omitempty" json:"entities,omitempty"`
}

type KeyDef struct {
	Name string `yaml:"name" json:"name"`
	Kind string `yaml:"kind" json:"kind"` // "S", "N", or "B"
}

type GSI struct {
	Name         string  `yaml:"name" json:"name"`
	PartitionKey KeyDef  `yaml:"partitionKey" json:"partitionKey"`
	SortKey      *KeyDef `yaml:"sortKey,omitempty" json:"sortKey,omitempty"`
}

// Entity describes an entity type stored in a table.
type Entity struct {
	Type                string       `yaml:"type" json:"type"`
	PartitionKeyPattern string       `yaml:"partitionKeyPattern" json:"partitionKeyPattern"`
	SortKeyPattern      string       `yaml:"sortKeyPattern,omitempty" json:"sortKeyPattern,omitempty"`
	Fields              []Field      `yaml:"fields" json:"fields"`
	GSIMappings         []GSIMapping `yaml:"gsiMappings,omitempty" json:"gsiMappings,omitempty"`
}

type Field struct {
	Name string `yaml:"name" json:"name"`
	Tag  string `yaml:"tag" json:"tag"`
	Type string `yaml:"type" json:"type"`
}

// GSIMapping describes how an entity maps to a GSI.
type GSIMapping struct {
	GSI              string `yaml:"gsi" json:"gsi"`
	PartitionPattern string `yaml:"partitionPattern" json:"partitionPattern"`
	SortPattern      string `yaml:"sortPattern,omitempty" json:"sortPattern,omitempty"`
}

// EntitySpec is one entity type to describe: its primary index and a zero
// value of the Go type it is stored as.
type EntitySpec struct {
	Type  string
	Index table.PrimaryIndexDefinition
	Value any
	GSIs  []GSIMapping
}

// Describe builds the schema of def with the given entities.
func Describe(def table.TableDefinition, entities ...EntitySpec) Schema {
	t := Table{
		Name:         def.Name,
		PartitionKey: keyDef(def.KeyDefinitions.PartitionKey),
		SortKey:      optionalKeyDef(def.KeyDefinitions.SortKey),
	}
	for _, g := range def.GSIs {
		t.GSIs = append(t.GSIs, GSI{
			Name:         g.Name,
			PartitionKey: keyDef(g.KeyDefinitions.PartitionKey),
			SortKey:      optionalKeyDef(g.KeyDefinitions.SortKey),
		})
	}
	for _, e := range entities {
		ent := Entity{
			Type:                e.Type,
			PartitionKeyPattern: e.Index.PartitionKeyer.Pattern(),
			Fields:              Fields(e.Value),
			GSIMappings:         e.GSIs,
		}
		if e.Index.SortKeyer != nil {
			ent.SortKeyPattern = e.Index.SortKeyer.Pattern()
		}
		t.Entities = append(t.Entities, ent)
	}
	return Schema{Tables: []Table{t}}
}

func keyDef(k table.KeyDef) KeyDef {
	return KeyDef{Name: k.Name, Kind: string(k.Kind)}
}

func optionalKeyDef(k table.KeyDef) *KeyDef {
	if k.Name == "" {
		return nil
	}
	kd := keyDef(k)
	return &kd
}

// Fields lists the stored attributes of a struct, named by their dynamodbav
// tags. Fields tagged "-" are skipped.
func Fields(v any) []Field {
	rt := reflect.TypeOf(v)
	for rt != nil && rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt == nil || rt.Kind() != reflect.Struct {
		return nil
	}
	var fields []Field
	for i := range rt.NumField() {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(f.Tag.Get("dynamodbav"), ",")
		if tag == "-" {
			continue
		}
		if tag == "" {
			tag = f.Name
		}
		fields = append(fields, Field{Name: f.Name, Tag: tag, Type: f.Type.String()})
	}
	return fields
}
