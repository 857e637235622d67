// Package condexpr compiles small arithmetic predicates over scalar names,
// e.g. "loss < 0.5 && abs(grad) < 10". Conditions arrive as text (from
// conditions.yaml or over RPC), so the predicate language has to be
// serializable rather than a function value.
package condexpr

import (
	"strings"
	"unicode"

	"github.com/teranos/warden/errors"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenIdent
	tokenPlus   // +
	tokenMinus  // -
	tokenStar   // *
	tokenSlash  // /
	tokenLParen // (
	tokenRParen // )
	tokenComma  // ,
	tokenLT     // <
	tokenLE     // <=
	tokenGT     // >
	tokenGE     // >=
	tokenEQ     // ==
	tokenNE     // !=
	tokenAnd    // &&
	tokenOr     // ||
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lex splits src into tokens. Positions are byte offsets into src, used
// for error messages.
func lex(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c >= '0' && c <= '9' || c == '.':
			start := i
			seenDot := false
			for i < len(src) && (src[i] >= '0' && src[i] <= '9' || src[i] == '.') {
				if src[i] == '.' {
					if seenDot {
						return nil, errors.Newf("malformed number at position %d", start)
					}
					seenDot = true
				}
				i++
			}
			text := src[start:i]
			if text == "." {
				return nil, errors.Newf("malformed number at position %d", start)
			}
			tokens = append(tokens, token{tokenNumber, text, start})
		case isIdentStart(rune(c)):
			start := i
			for i < len(src) && isIdentPart(rune(src[i])) {
				i++
			}
			tokens = append(tokens, token{tokenIdent, src[start:i], start})
		case c == '+':
			tokens = append(tokens, token{tokenPlus, "+", i})
			i++
		case c == '-':
			tokens = append(tokens, token{tokenMinus, "-", i})
			i++
		case c == '*':
			tokens = append(tokens, token{tokenStar, "*", i})
			i++
		case c == '/':
			tokens = append(tokens, token{tokenSlash, "/", i})
			i++
		case c == '(':
			tokens = append(tokens, token{tokenLParen, "(", i})
			i++
		case c == ')':
			tokens = append(tokens, token{tokenRParen, ")", i})
			i++
		case c == ',':
			tokens = append(tokens, token{tokenComma, ",", i})
			i++
		case c == '<':
			if i+1 < len(src) && src[i+1] == '=' {
				tokens = append(tokens, token{tokenLE, "<=", i})
				i += 2
			} else {
				tokens = append(tokens, token{tokenLT, "<", i})
				i++
			}
		case c == '>':
			if i+1 < len(src) && src[i+1] == '=' {
				tokens = append(tokens, token{tokenGE, ">=", i})
				i += 2
			} else {
				tokens = append(tokens, token{tokenGT, ">", i})
				i++
			}
		case c == '=':
			if i+1 < len(src) && src[i+1] == '=' {
				tokens = append(tokens, token{tokenEQ, "==", i})
				i += 2
			} else {
				return nil, errors.Newf("unexpected '=' at position %d (use '==' for comparison)", i)
			}
		case c == '!':
			if i+1 < len(src) && src[i+1] == '=' {
				tokens = append(tokens, token{tokenNE, "!=", i})
				i += 2
			} else {
				return nil, errors.Newf("unexpected '!' at position %d (use '!=' for comparison)", i)
			}
		case c == '&':
			if i+1 < len(src) && src[i+1] == '&' {
				tokens = append(tokens, token{tokenAnd, "&&", i})
				i += 2
			} else {
				return nil, errors.Newf("unexpected '&' at position %d (use '&&')", i)
			}
		case c == '|':
			if i+1 < len(src) && src[i+1] == '|' {
				tokens = append(tokens, token{tokenOr, "||", i})
				i += 2
			} else {
				return nil, errors.Newf("unexpected '|' at position %d (use '||')", i)
			}
		default:
			return nil, errors.Newf("unexpected character %q at position %d", string(src[i:i+1]), i)
		}
	}
	tokens = append(tokens, token{tokenEOF, "", len(src)})
	return tokens, nil
}

// Scalar names follow the reporting side: letters, digits, underscores,
// and interior dots ("val.loss"). Dashes are not allowed; they would be
// ambiguous with subtraction.
func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.'
}

// IsValidName reports whether s is usable as a scalar name in an expression.
func IsValidName(s string) bool {
	if s == "" {
		return false
	}
	if !isIdentStart(rune(s[0])) {
		return false
	}
	for _, r := range s {
		if !isIdentPart(r) {
			return false
		}
	}
	return !strings.ContainsAny(s, " \t")
}
