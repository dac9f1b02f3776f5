package expression

import (
	"errors"
	"fmt"
	"strconv"
)

// RootIdentifier is the only free variable an expression may reference. It is
// bound to the flat key/value context supplied at evaluation time.
const RootIdentifier = "dataLayer"

const maxDepth = 64

type parser struct {
	tokens []token
	pos    int
	depth  int
}

func parse(tokens []token) (node, error) {
	if len(tokens) == 0 {
		return nil, errors.New("expression: empty expression")
	}
	p := &parser{tokens: tokens}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		return nil, fmt.Errorf("expression: unexpected token %q at offset %d", tok.raw, tok.pos)
	}
	return n, nil
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return fmt.Errorf("expression: nesting deeper than %d", maxDepth)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.match(tokenOr) {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = orNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.match(tokenAnd) {
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = andNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseEquality() (node, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchAny(tokenEq, tokenNeq, tokenStrictEq, tokenStrictNeq)
		if !ok {
			return left, nil
		}
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = compareNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseRelational() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.matchAny(tokenLt, tokenLte, tokenGt, tokenGte)
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = compareNode{op: op, left: left, right: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	if p.match(tokenNot) {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}
	if p.match(tokenMinus) {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negateNode{inner: inner}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.match(tokenDot):
			name, ok := p.consume(tokenIdentifier)
			if !ok {
				return nil, p.errExpected("property name after '.'")
			}
			base = memberNode{target: base, key: literalNode{value: name.raw}}
		case p.match(tokenLBracket):
			key, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if !p.match(tokenRBracket) {
				return nil, p.errExpected("']'")
			}
			base = memberNode{target: base, key: key}
		case p.peek(tokenLParen):
			return nil, fmt.Errorf("expression: function calls are not allowed at offset %d", p.tokens[p.pos].pos)
		default:
			return base, nil
		}
	}
}

func (p *parser) parsePrimary() (node, error) {
	if p.pos >= len(p.tokens) {
		return nil, errors.New("expression: unexpected end of expression")
	}
	tok := p.tokens[p.pos]
	p.pos++

	switch tok.kind {
	case tokenLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.match(tokenRParen) {
			return nil, errors.New("expression: missing closing ')'")
		}
		return inner, nil
	case tokenString:
		return literalNode{value: tok.raw}, nil
	case tokenNumber:
		f, err := strconv.ParseFloat(tok.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("expression: invalid number %q", tok.raw)
		}
		return literalNode{value: f}, nil
	case tokenBool:
		return literalNode{value: tok.raw == "true"}, nil
	case tokenNull:
		return literalNode{value: nil}, nil
	case tokenUndefined:
		return literalNode{value: undefined{}}, nil
	case tokenIdentifier:
		if tok.raw != RootIdentifier {
			return nil, fmt.Errorf("expression: unknown identifier %q; only %s is in scope", tok.raw, RootIdentifier)
		}
		return rootNode{}, nil
	default:
		return nil, fmt.Errorf("expression: unexpected token %q at offset %d", tok.raw, tok.pos)
	}
}

func (p *parser) match(kind tokenKind) bool {
	if p.peek(kind) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) matchAny(kinds ...tokenKind) (tokenKind, bool) {
	for _, k := range kinds {
		if p.match(k) {
			return k, true
		}
	}
	return 0, false
}

func (p *parser) peek(kind tokenKind) bool {
	return p.pos < len(p.tokens) && p.tokens[p.pos].kind == kind
}

func (p *parser) consume(kind tokenKind) (token, bool) {
	if !p.peek(kind) {
		return token{}, false
	}
	tok := p.tokens[p.pos]
	p.pos++
	return tok, true
}

func (p *parser) errExpected(what string) error {
	if p.pos >= len(p.tokens) {
		return fmt.Errorf("expression: expected %s, got end of expression", what)
	}
	tok := p.tokens[p.pos]
	return fmt.Errorf("expression: expected %s, got %q at offset %d", what, tok.raw, tok.pos)
}
