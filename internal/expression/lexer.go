package expression

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokenIdentifier tokenKind = iota
	tokenString
	tokenNumber
	tokenBool
	tokenNull
	tokenUndefined
	tokenEq
	tokenStrictEq
	tokenNeq
	tokenStrictNeq
	tokenLt
	tokenLte
	tokenGt
	tokenGte
	tokenAnd
	tokenOr
	tokenNot
	tokenMinus
	tokenDot
	tokenLParen
	tokenRParen
	tokenLBracket
	tokenRBracket
)

type token struct {
	kind tokenKind
	raw  string
	pos  int
}

// MaxExpressionLength bounds the input accepted by the tokenizer.
const MaxExpressionLength = 4096

func tokenize(input string) ([]token, error) {
	if len(input) > MaxExpressionLength {
		return nil, fmt.Errorf("expression: input exceeds %d bytes", MaxExpressionLength)
	}

	var tokens []token
	i := 0

	peek := func(offset int) byte {
		if i+offset >= len(input) {
			return 0
		}
		return input[i+offset]
	}

	emit := func(kind tokenKind, raw string) {
		tokens = append(tokens, token{kind: kind, raw: raw, pos: i})
		i += len(raw)
	}

	for i < len(input) {
		ch := input[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '(':
			emit(tokenLParen, "(")
		case ch == ')':
			emit(tokenRParen, ")")
		case ch == '[':
			emit(tokenLBracket, "[")
		case ch == ']':
			emit(tokenRBracket, "]")
		case ch == '.' && !isDigit(peek(1)):
			emit(tokenDot, ".")
		case ch == '=':
			switch {
			case peek(1) == '=' && peek(2) == '=':
				emit(tokenStrictEq, "===")
			case peek(1) == '=':
				emit(tokenEq, "==")
			default:
				return nil, fmt.Errorf("expression: assignment is not allowed at offset %d", i)
			}
		case ch == '!':
			switch {
			case peek(1) == '=' && peek(2) == '=':
				emit(tokenStrictNeq, "!==")
			case peek(1) == '=':
				emit(tokenNeq, "!=")
			default:
				emit(tokenNot, "!")
			}
		case ch == '<':
			if peek(1) == '=' {
				emit(tokenLte, "<=")
			} else {
				emit(tokenLt, "<")
			}
		case ch == '>':
			if peek(1) == '=' {
				emit(tokenGte, ">=")
			} else {
				emit(tokenGt, ">")
			}
		case ch == '&':
			if peek(1) != '&' {
				return nil, fmt.Errorf("expression: unexpected '&' at offset %d; use '&&'", i)
			}
			emit(tokenAnd, "&&")
		case ch == '|':
			if peek(1) != '|' {
				return nil, fmt.Errorf("expression: unexpected '|' at offset %d; use '||'", i)
			}
			emit(tokenOr, "||")
		case ch == '-':
			emit(tokenMinus, "-")
		case ch == '"' || ch == '\'':
			value, n, err := scanString(input[i:])
			if err != nil {
				return nil, fmt.Errorf("expression: %w at offset %d", err, i)
			}
			tokens = append(tokens, token{kind: tokenString, raw: value, pos: i})
			i += n
		case isDigit(ch) || (ch == '.' && isDigit(peek(1))):
			start := i
			for i < len(input) && (isDigit(input[i]) || input[i] == '.') {
				i++
			}
			raw := input[start:i]
			if _, err := strconv.ParseFloat(raw, 64); err != nil {
				return nil, fmt.Errorf("expression: invalid number %q at offset %d", raw, start)
			}
			tokens = append(tokens, token{kind: tokenNumber, raw: raw, pos: start})
		case isIdentStart(ch):
			start := i
			for i < len(input) && isIdentPart(input[i]) {
				i++
			}
			raw := input[start:i]
			kind := tokenIdentifier
			switch raw {
			case "true", "false":
				kind = tokenBool
			case "null":
				kind = tokenNull
			case "undefined":
				kind = tokenUndefined
			}
			tokens = append(tokens, token{kind: kind, raw: raw, pos: start})
		default:
			return nil, fmt.Errorf("expression: unexpected character %q at offset %d", ch, i)
		}
	}
	return tokens, nil
}

// scanString reads a quoted literal and returns its value and consumed length.
func scanString(input string) (string, int, error) {
	quote := input[0]
	var b strings.Builder
	for i := 1; i < len(input); i++ {
		c := input[i]
		switch c {
		case '\\':
			if i+1 >= len(input) {
				return "", 0, fmt.Errorf("unterminated string literal")
			}
			i++
			switch input[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(input[i])
			}
		case quote:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated string literal")
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
