package expression

import (
	"fmt"
	"math"
	"strconv"
)

// undefined marks a lookup that resolved to nothing, as distinct from an explicit null.
type undefined struct{}

type node interface {
	eval(scope map[string]any) (any, error)
}

type rootNode struct{}

func (rootNode) eval(scope map[string]any) (any, error) {
	return scope, nil
}

type literalNode struct {
	value any
}

func (n literalNode) eval(map[string]any) (any, error) {
	return n.value, nil
}

type memberNode struct {
	target node
	key    node
}

func (n memberNode) eval(scope map[string]any) (any, error) {
	target, err := n.target.eval(scope)
	if err != nil {
		return nil, err
	}
	key, err := n.key.eval(scope)
	if err != nil {
		return nil, err
	}
	if isNullish(target) {
		return nil, fmt.Errorf("expression: cannot read property %q of %s", toString(key), describe(target))
	}
	return member(target, key), nil
}

// member resolves one property step. Only plain data is reachable: maps, slices
// and string/slice length. Everything else reads as undefined.
func member(target, key any) any {
	switch t := target.(type) {
	case map[string]any:
		if v, ok := t[toString(key)]; ok {
			return v
		}
		return undefined{}
	case map[string]string:
		if v, ok := t[toString(key)]; ok {
			return v
		}
		return undefined{}
	case []any:
		if toString(key) == "length" {
			return float64(len(t))
		}
		if idx, ok := index(key, len(t)); ok {
			return t[idx]
		}
		return undefined{}
	case []string:
		if toString(key) == "length" {
			return float64(len(t))
		}
		if idx, ok := index(key, len(t)); ok {
			return t[idx]
		}
		return undefined{}
	case string:
		if toString(key) == "length" {
			return float64(len([]rune(t)))
		}
		return undefined{}
	default:
		return undefined{}
	}
}

func index(key any, length int) (int, bool) {
	f, ok := key.(float64)
	if !ok {
		s, isString := key.(string)
		if !isString {
			return 0, false
		}
		parsed, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		f = float64(parsed)
	}
	if f != math.Trunc(f) || f < 0 || int(f) >= length {
		return 0, false
	}
	return int(f), true
}

type notNode struct {
	inner node
}

func (n notNode) eval(scope map[string]any) (any, error) {
	v, err := n.inner.eval(scope)
	if err != nil {
		return nil, err
	}
	return !truthy(v), nil
}

type negateNode struct {
	inner node
}

func (n negateNode) eval(scope map[string]any) (any, error) {
	v, err := n.inner.eval(scope)
	if err != nil {
		return nil, err
	}
	return -toNumber(v), nil
}

// andNode and orNode return operand values rather than booleans, so
// `a && b` yields b when a is truthy.
type andNode struct {
	left, right node
}

func (n andNode) eval(scope map[string]any) (any, error) {
	left, err := n.left.eval(scope)
	if err != nil {
		return nil, err
	}
	if !truthy(left) {
		return left, nil
	}
	return n.right.eval(scope)
}

type orNode struct {
	left, right node
}

func (n orNode) eval(scope map[string]any) (any, error) {
	left, err := n.left.eval(scope)
	if err != nil {
		return nil, err
	}
	if truthy(left) {
		return left, nil
	}
	return n.right.eval(scope)
}

type compareNode struct {
	op          tokenKind
	left, right node
}

func (n compareNode) eval(scope map[string]any) (any, error) {
	left, err := n.left.eval(scope)
	if err != nil {
		return nil, err
	}
	right, err := n.right.eval(scope)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case tokenEq:
		return looseEqual(left, right), nil
	case tokenNeq:
		return !looseEqual(left, right), nil
	case tokenStrictEq:
		return strictEqual(left, right), nil
	case tokenStrictNeq:
		return !strictEqual(left, right), nil
	case tokenLt, tokenLte, tokenGt, tokenGte:
		return relational(n.op, left, right), nil
	default:
		return nil, fmt.Errorf("expression: unsupported operator")
	}
}

func relational(op tokenKind, left, right any) bool {
	if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok {
			switch op {
			case tokenLt:
				return ls < rs
			case tokenLte:
				return ls <= rs
			case tokenGt:
				return ls > rs
			default:
				return ls >= rs
			}
		}
	}
	l, r := toNumber(left), toNumber(right)
	if math.IsNaN(l) || math.IsNaN(r) {
		return false
	}
	switch op {
	case tokenLt:
		return l < r
	case tokenLte:
		return l <= r
	case tokenGt:
		return l > r
	default:
		return l >= r
	}
}
