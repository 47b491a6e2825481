package harness

import (
	"fmt"
	"strconv"

	"github.com/roach88/derive/internal/doc"
)

// applyPatch sets each dotted path of patch on model, in order.
// Untouched branches keep their references, so the rules see exactly the
// fields the patch changed. Null removes a record key.
func applyPatch(model doc.Value, patch *doc.Object) (doc.Value, error) {
	out := model
	for path, val := range patch.All() {
		if _, isNull := val.(doc.Null); isNull {
			val = nil
		}
		next, err := setPath(out, doc.ParsePath(path), val)
		if err != nil {
			return nil, fmt.Errorf("patch %q: %w", path, err)
		}
		out = next
	}
	return out, nil
}

func setPath(cur doc.Value, path []string, val doc.Value) (doc.Value, error) {
	if len(path) == 0 {
		if val == nil {
			return doc.Null{}, nil
		}
		return val, nil
	}

	seg, rest := path[0], path[1:]
	switch node := cur.(type) {
	case *doc.Object:
		if len(rest) == 0 {
			if val == nil {
				return node.Without(seg), nil
			}
			return node.With(seg, val), nil
		}
		child, err := setPath(node.Lookup(seg), rest, val)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return node.Without(seg), nil
		}
		return node.With(seg, child), nil
	case *doc.Array:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx > node.Len() {
			return nil, fmt.Errorf("index %q out of range for array of %d", seg, node.Len())
		}
		if len(rest) == 0 && val == nil {
			return nil, fmt.Errorf("cannot remove array element %d; set the array instead", idx)
		}
		child, err := setPath(node.At(idx), rest, val)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return node, nil
		}
		elems := node.Values()
		if idx == len(elems) {
			elems = append(elems, child)
		} else {
			elems[idx] = child
		}
		return doc.NewArray(elems...), nil
	case nil:
		if val == nil {
			return nil, nil
		}
		child, err := setPath(nil, rest, val)
		if err != nil {
			return nil, err
		}
		return doc.NewObject(doc.P(seg, child)), nil
	default:
		return nil, fmt.Errorf("cannot set %q inside %s value", seg, doc.TypeName(cur))
	}
}
