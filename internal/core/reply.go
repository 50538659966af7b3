package core

import (
	"fmt"
)

// Reply is a store reply in one of its normal forms: nil for a nil reply,
// int64, string, or []any holding those forms.
type Reply = any

// ReplyBytes returns the payload of a bulk string reply.
// ok is false for a nil reply.
func ReplyBytes(r Reply) (data []byte, ok bool, err error) {
	switch v := r.(type) {
	case nil:
		return nil, false, nil
	case string:
		return []byte(v), true, nil
	case []byte:
		return v, true, nil
	default:
		return nil, false, fmt.Errorf("unexpected reply type %T, want bulk string", r)
	}
}

// ReplyInt returns the value of an integer reply.
func ReplyInt(r Reply) (int64, error) {
	switch v := r.(type) {
	case int64:
		return v, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected reply type %T, want integer", r)
	}
}

// ReplyArray returns the items of an array reply. A nil reply yields nil.
func ReplyArray(r Reply) ([]any, error) {
	switch v := r.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unexpected reply type %T, want array", r)
	}
}

// ReplyKeyValue unpacks the [key, value] pair returned by multi-key pops.
// ok is false for a nil reply.
func ReplyKeyValue(r Reply) (key string, value []byte, ok bool, err error) {
	items, err := ReplyArray(r)
	if err != nil || items == nil {
		return "", nil, false, err
	}
	if len(items) != 2 {
		return "", nil, false, fmt.Errorf("unexpected key/value reply length %d", len(items))
	}
	k, _, err := ReplyBytes(items[0])
	if err != nil {
		return "", nil, false, err
	}
	v, ok, err := ReplyBytes(items[1])
	if err != nil {
		return "", nil, false, err
	}
	return string(k), v, ok, nil
}
