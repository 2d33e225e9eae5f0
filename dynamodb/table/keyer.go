package table

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type Keyer interface {
	Key(doc map[string]types.AttributeValue) (types.AttributeValue, error)
	// Pattern describes the key for humans, e.g. "USER#{id}".
	Pattern() string
}

// FmtKeyer looks up `keys` in the document being written and passes them to
// the format string. Keys must resolve to strings or numbers and may use dot
// notation for nested maps, e.g. "address.country".
//
// The format string should only use %s. Every key is required; missing or
// empty keys are errors.
func FmtKeyer(format string, keys ...string) Keyer {
	return keyFormat{format, keys}
}

type keyFormat struct {
	format string
	keys   []string
}

func (k keyFormat) Key(doc map[string]types.AttributeValue) (types.AttributeValue, error) {
	vals := make([]any, len(k.keys))
	for i, key := range k.keys {
		v, err := lookup(doc, key)
		if err != nil {
			return nil, err
		}
		switch attr := v.(type) {
		case *types.AttributeValueMemberS:
			if attr.Value == "" {
				return nil, fmt.Errorf("key %q is empty", key)
			}
			vals[i] = attr.Value
		case *types.AttributeValueMemberN:
			vals[i] = attr.Value
		default:
			return nil, fmt.Errorf("type for key %q is not string or number, got %T", key, v)
		}
	}
	return &types.AttributeValueMemberS{Value: fmt.Sprintf(k.format, vals...)}, nil
}

func (k keyFormat) Pattern() string {
	vals := make([]any, len(k.keys))
	for i, key := range k.keys {
		vals[i] = "{" + key + "}"
	}
	return fmt.Sprintf(k.format, vals...)
}

func lookup(doc map[string]types.AttributeValue, path string) (types.AttributeValue, error) {
	parts := strings.Split(path, ".")
	cur := doc
	for i, p := range parts {
		v, ok := cur[p]
		if !ok {
			return nil, fmt.Errorf("key %q not found", path)
		}
		if i == len(parts)-1 {
			return v, nil
		}
		m, ok := v.(*types.AttributeValueMemberM)
		if !ok {
			return nil, fmt.Errorf("key %q: %q is not a map", path, p)
		}
		cur = m.Value
	}
	return nil, fmt.Errorf("key %q not found", path)
}

func ConstKeyer(val string) Keyer {
	return constKey{&types.AttributeValueMemberS{Value: val}}
}

type constKey struct {
	val types.AttributeValue
}

func (k constKey) Key(map[string]types.AttributeValue) (types.AttributeValue, error) {
	return k.val, nil
}

func (k constKey) Pattern() string {
	return k.val.(*types.AttributeValueMemberS).Value
}
