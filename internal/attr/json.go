package attr

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// UnmarshalJSON parses an item written in DynamoDB JSON
// ({"name": {"S": "ACME"}, "score": {"N": "72"}}).
func UnmarshalJSON(data []byte) (map[string]types.AttributeValue, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing item: %w", err)
	}
	item := make(map[string]types.AttributeValue, len(raw))
	for k, r := range raw {
		av, err := parseAttribute(r, k)
		if err != nil {
			return nil, err
		}
		item[k] = av
	}
	return item, nil
}

// MarshalJSON writes an item in DynamoDB JSON.
func MarshalJSON(item map[string]types.AttributeValue) ([]byte, error) {
	out := make(map[string]any, len(item))
	for k, av := range item {
		v, err := toTagged(av)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", k, err)
		}
		out[k] = v
	}
	return json.Marshal(out)
}

func parseAttribute(data json.RawMessage, path string) (types.AttributeValue, error) {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return nil, fmt.Errorf("attribute %q is not a tagged object: %w", path, err)
	}
	if len(tagged) != 1 {
		return nil, &UnknownShapeError{Path: path, Raw: string(data)}
	}

	for tag, body := range tagged {
		switch tag {
		case "S":
			var s string
			if err := json.Unmarshal(body, &s); err != nil {
				return nil, fmt.Errorf("attribute %q: %w", path, err)
			}
			return &types.AttributeValueMemberS{Value: s}, nil
		case "N":
			s, err := numberString(body)
			if err != nil {
				return nil, fmt.Errorf("attribute %q: %w", path, err)
			}
			return &types.AttributeValueMemberN{Value: s}, nil
		case "BOOL":
			var b bool
			if err := json.Unmarshal(body, &b); err != nil {
				return nil, fmt.Errorf("attribute %q: %w", path, err)
			}
			return &types.AttributeValueMemberBOOL{Value: b}, nil
		case "NULL":
			return &types.AttributeValueMemberNULL{Value: true}, nil
		case "B":
			var s string
			if err := json.Unmarshal(body, &s); err != nil {
				return nil, fmt.Errorf("attribute %q: %w", path, err)
			}
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return nil, fmt.Errorf("attribute %q: %w", path, err)
			}
			return &types.AttributeValueMemberB{Value: b}, nil
		case "SS":
			var ss []string
			if err := json.Unmarshal(body, &ss); err != nil {
				return nil, fmt.Errorf("attribute %q: %w", path, err)
			}
			return &types.AttributeValueMemberSS{Value: ss}, nil
		case "NS":
			var items []json.RawMessage
			if err := json.Unmarshal(body, &items); err != nil {
				return nil, fmt.Errorf("attribute %q: %w", path, err)
			}
			ns := make([]string, 0, len(items))
			for _, it := range items {
				s, err := numberString(it)
				if err != nil {
					return nil, fmt.Errorf("attribute %q: %w", path, err)
				}
				ns = append(ns, s)
			}
			return &types.AttributeValueMemberNS{Value: ns}, nil
		case "L":
			var items []json.RawMessage
			if err := json.Unmarshal(body, &items); err != nil {
				return nil, fmt.Errorf("attribute %q: %w", path, err)
			}
			list := make([]types.AttributeValue, 0, len(items))
			for i, it := range items {
				av, err := parseAttribute(it, fmt.Sprintf("%s[%d]", path, i))
				if err != nil {
					return nil, err
				}
				list = append(list, av)
			}
			return &types.AttributeValueMemberL{Value: list}, nil
		case "M":
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(body, &fields); err != nil {
				return nil, fmt.Errorf("attribute %q: %w", path, err)
			}
			m := make(map[string]types.AttributeValue, len(fields))
			for k, f := range fields {
				av, err := parseAttribute(f, path+"."+k)
				if err != nil {
					return nil, err
				}
				m[k] = av
			}
			return &types.AttributeValueMemberM{Value: m}, nil
		}
	}
	return nil, &UnknownShapeError{Path: path, Raw: string(data)}
}

// numberString accepts both "12.5" and 12.5 for N values.
func numberString(body json.RawMessage) (string, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '"' {
		var s string
		err := json.Unmarshal(body, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(body, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func toTagged(av types.AttributeValue) (any, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return map[string]string{"S": v.Value}, nil
	case *types.AttributeValueMemberN:
		return map[string]string{"N": v.Value}, nil
	case *types.AttributeValueMemberBOOL:
		return map[string]bool{"BOOL": v.Value}, nil
	case *types.AttributeValueMemberNULL:
		return map[string]bool{"NULL": true}, nil
	case *types.AttributeValueMemberB:
		return map[string]string{"B": base64.StdEncoding.EncodeToString(v.Value)}, nil
	case *types.AttributeValueMemberSS:
		return map[string][]string{"SS": v.Value}, nil
	case *types.AttributeValueMemberNS:
		return map[string][]string{"NS": v.Value}, nil
	case *types.AttributeValueMemberL:
		list := make([]any, 0, len(v.Value))
		for _, item := range v.Value {
			t, err := toTagged(item)
			if err != nil {
				return nil, err
			}
			list = append(list, t)
		}
		return map[string]any{"L": list}, nil
	case *types.AttributeValueMemberM:
		m := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			t, err := toTagged(item)
			if err != nil {
				return nil, err
			}
			m[k] = t
		}
		return map[string]any{"M": m}, nil
	}
	return nil, &UnknownShapeError{Raw: av}
}
