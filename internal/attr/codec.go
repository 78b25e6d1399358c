// Package attr converts between DynamoDB-style tagged attribute values and
// native Go values, and decodes report items stored in that format.
package attr

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// ErrUnknownShape matches every UnknownShapeError.
var ErrUnknownShape = errors.New("unknown attribute shape")

// UnknownShapeError is returned for a value that carries no recognised tag.
// Raw holds the offending value so callers may still degrade gracefully.
type UnknownShapeError struct {
	Path string
	Raw  any
}

func (e *UnknownShapeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %T", ErrUnknownShape, e.Raw)
	}
	return fmt.Sprintf("%s at %s: %T", ErrUnknownShape, e.Path, e.Raw)
}

func (e *UnknownShapeError) Is(target error) bool { return target == ErrUnknownShape }

// Decode converts a tagged value into its native form:
// S -> string, N -> float64, BOOL -> bool, NULL -> nil, L -> []any,
// M -> map[string]any, SS -> []string, NS -> []float64, B -> []byte.
// Values carrying no recognised tag fail with an UnknownShapeError.
func Decode(av types.AttributeValue) (any, error) {
	if err := checkShape(av, ""); err != nil {
		return nil, err
	}
	var out any
	if err := attributevalue.Unmarshal(av, &out); err != nil {
		return nil, fmt.Errorf("decoding attribute: %w", err)
	}
	return out, nil
}

// checkShape walks av and reports the first value without a known tag.
func checkShape(av types.AttributeValue, path string) error {
	switch v := av.(type) {
	case *types.AttributeValueMemberS, *types.AttributeValueMemberN,
		*types.AttributeValueMemberBOOL, *types.AttributeValueMemberNULL,
		*types.AttributeValueMemberB, *types.AttributeValueMemberBS,
		*types.AttributeValueMemberSS, *types.AttributeValueMemberNS:
		return nil
	case *types.AttributeValueMemberL:
		for i, item := range v.Value {
			if err := checkShape(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	case *types.AttributeValueMemberM:
		return checkMapShape(v.Value, path)
	}
	return &UnknownShapeError{Path: path, Raw: av}
}

func checkMapShape(m map[string]types.AttributeValue, path string) error {
	for _, k := range sortedKeys(m) {
		p := k
		if path != "" {
			p = path + "." + k
		}
		if err := checkShape(m[k], p); err != nil {
			return err
		}
	}
	return nil
}

// DecodeMap decodes every attribute of an item.
func DecodeMap(item map[string]types.AttributeValue) (map[string]any, error) {
	if err := checkMapShape(item, ""); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(item))
	if err := attributevalue.UnmarshalMap(item, &out); err != nil {
		return nil, fmt.Errorf("decoding item: %w", err)
	}
	return out, nil
}

// DecodeLenient never fails: shapes it cannot decode are returned unchanged,
// and a bad number decodes as its string form.
func DecodeLenient(av types.AttributeValue) any {
	switch v := av.(type) {
	case *types.AttributeValueMemberN:
		if f, err := strconv.ParseFloat(v.Value, 64); err == nil {
			return f
		}
		return v.Value
	case *types.AttributeValueMemberL:
		out := make([]any, 0, len(v.Value))
		for _, item := range v.Value {
			out = append(out, DecodeLenient(item))
		}
		return out
	case *types.AttributeValueMemberM:
		out := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			out[k] = DecodeLenient(item)
		}
		return out
	}
	d, err := Decode(av)
	if err != nil {
		return av
	}
	return d
}

// Encode converts a native value into its tagged form. Decimals encode as
// numbers and Stringers as strings; values the attribute marshaller cannot
// handle are stringified.
func Encode(v any) types.AttributeValue {
	switch x := v.(type) {
	case nil:
		return &types.AttributeValueMemberNULL{Value: true}
	case types.AttributeValue:
		return x
	case string:
		return &types.AttributeValueMemberS{Value: x}
	case decimal.Decimal:
		return &types.AttributeValueMemberN{Value: x.String()}
	case fmt.Stringer:
		return &types.AttributeValueMemberS{Value: x.String()}
	}
	av, err := attributevalue.Marshal(v)
	if err != nil || av == nil {
		return &types.AttributeValueMemberS{Value: fmt.Sprint(v)}
	}
	return av
}

// EncodeMap encodes a native map as an item.
func EncodeMap(m map[string]any) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(m))
	for k, v := range m {
		out[k] = Encode(v)
	}
	return out
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
