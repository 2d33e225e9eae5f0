package ddbsdk

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type sortKeyOp int

const (
	skAny sortKeyOp = iota
	skEquals
	skBeginsWith
)

// SortKeyCondition restricts the sort key in a range query. The zero value
// matches every sort key in the partition.
type SortKeyCondition struct {
	op    sortKeyOp
	value any
}

// Equals returns items where the sort key equals the provided value.
func Equals(v any) SortKeyCondition {
	return SortKeyCondition{op: skEquals, value: v}
}

// BeginsWith returns items where the sort key starts with the provided prefix.
func BeginsWith(prefix string) SortKeyCondition {
	return SortKeyCondition{op: skBeginsWith, value: prefix}
}

func (c SortKeyCondition) IsSet() bool {
	return c.op != skAny
}

// Prefix returns the prefix of a BeginsWith condition.
func (c SortKeyCondition) Prefix() (string, bool) {
	if c.op != skBeginsWith {
		return "", false
	}
	return c.value.(string), true
}

func (c SortKeyCondition) builder(skName string) expression.KeyConditionBuilder {
	switch c.op {
	case skBeginsWith:
		return expression.KeyBeginsWith(expression.Key(skName), c.value.(string))
	default:
		return expression.KeyEqual(expression.Key(skName), expression.Value(c.value))
	}
}

// Matches evaluates the condition against a stored sort key.
func (c SortKeyCondition) Matches(sk types.AttributeValue) (bool, error) {
	switch c.op {
	case skAny:
		return true, nil
	case skBeginsWith:
		s, ok := sk.(*types.AttributeValueMemberS)
		if !ok {
			return false, fmt.Errorf("begins_with requires a string sort key, got %T", sk)
		}
		return strings.HasPrefix(s.Value, c.value.(string)), nil
	case skEquals:
		want, err := attributevalue.Marshal(c.value)
		if err != nil {
			return false, fmt.Errorf("marshal sort key value: %w", err)
		}
		return scalarEqual(want, sk), nil
	}
	return false, fmt.Errorf("unknown sort key condition %d", c.op)
}

// scalarEqual compares two S, N, B or BOOL attribute values.
func scalarEqual(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberB:
		bv, ok := b.(*types.AttributeValueMemberB)
		return ok && bytes.Equal(av.Value, bv.Value)
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	}
	return false
}
