package expr

import (
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokString
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// keywords are the word operators.
var keywords = map[string]bool{"and": true, "or": true, "not": true, "contains": true}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '\'' || c == '"':
			end := strings.IndexByte(src[i+1:], c)
			if end < 0 {
				return nil, &SyntaxError{Expr: src, Offset: i, Reason: "unterminated string"}
			}
			toks = append(toks, token{kind: tokString, text: src[i+1 : i+1+end], pos: i})
			i += end + 2
		case strings.IndexByte("=!<>", c) >= 0:
			op := string(c)
			if i+1 < len(src) && src[i+1] == '=' {
				op += "="
			}
			if op == "=" {
				return nil, &SyntaxError{Expr: src, Offset: i, Reason: "unexpected '=' (use '==')"}
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: i})
			i += len(op)
		default:
			start := i
			for i < len(src) && !isDelimiter(src[i]) {
				i++
			}
			word := src[start:i]
			kind := tokWord
			if keywords[word] {
				kind = tokOp
			}
			toks = append(toks, token{kind: kind, text: word, pos: start})
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

func isDelimiter(c byte) bool {
	return strings.IndexByte(" \t\n\r()'\"=!<>", c) >= 0
}
