package fuzzy

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/copyleftdev/fuzzopt/internal/errors"
)

// Rule grammar. Keywords are lower case and identifiers are case-sensitive.
//
//	rule        = "if" disjunction "then" consequent { ("," | "and") consequent } [ "with" number ]
//	disjunction = conjunction { "or" conjunction }
//	conjunction = factor { "and" factor }
//	factor      = "(" disjunction ")" | proposition
//	proposition = identifier "is" [ "not" ] identifier
//	consequent  = identifier "is" identifier
//
// "and" binds tighter than "or"; both associate to the left.

const (
	kwIf   = "if"
	kwThen = "then"
	kwIs   = "is"
	kwNot  = "not"
	kwAnd  = "and"
	kwOr   = "or"
	kwWith = "with"
)

func isKeyword(s string) bool {
	switch s {
	case kwIf, kwThen, kwIs, kwNot, kwAnd, kwOr, kwWith:
		return true
	}
	return false
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokNumber
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of rule"
	}
	return strconv.Quote(t.text)
}

func lex(text string) ([]token, error) {
	var tokens []token
	runes := []rune(text)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: i})
			i++
		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(runes) && (runes[i] == '_' || unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i])) {
				i++
			}
			tokens = append(tokens, token{kind: tokWord, text: string(runes[start:i]), pos: start})
		case unicode.IsDigit(r) || r == '.':
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			tokens = append(tokens, token{kind: tokNumber, text: string(runes[start:i]), pos: start})
		default:
			return nil, errors.Configurationf("unexpected character %q at offset %d", r, i)
		}
	}
	return append(tokens, token{kind: tokEOF, pos: len(runes)}), nil
}

// parser turns rule text into a syntax tree. Name resolution against the
// engine happens afterwards in resolve.
type parser struct {
	tokens []token
	pos    int
}

// ParseRule parses text into an unresolved Rule. NewEngine calls it for every
// rule and additionally checks variable and term references.
func ParseRule(text string) (*Rule, error) {
	tokens, err := lex(text)
	if err != nil {
		return nil, errors.Wrapf(err, "rule %q", text)
	}
	p := &parser{tokens: tokens}
	rule, err := p.rule()
	if err != nil {
		return nil, errors.Wrapf(err, "rule %q", text)
	}
	rule.Text = strings.TrimSpace(text)
	return rule, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tokWord && t.text == kw
}

func (p *parser) expectKeyword(kw string) error {
	t := p.next()
	if t.kind != tokWord || t.text != kw {
		return errors.Configurationf("expected %q at offset %d, found %s", kw, t.pos, t)
	}
	return nil
}

func (p *parser) identifier(what string) (string, error) {
	t := p.next()
	if t.kind != tokWord || isKeyword(t.text) {
		return "", errors.Configurationf("expected %s at offset %d, found %s", what, t.pos, t)
	}
	return t.text, nil
}

func (p *parser) rule() (*Rule, error) {
	if err := p.expectKeyword(kwIf); err != nil {
		return nil, err
	}
	antecedent, err := p.disjunction()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword(kwThen); err != nil {
		return nil, err
	}

	rule := &Rule{Antecedent: antecedent, Weight: 1}
	for {
		c, err := p.consequent()
		if err != nil {
			return nil, err
		}
		rule.Consequents = append(rule.Consequents, c)
		if p.peek().kind == tokComma || p.isKeyword(kwAnd) {
			p.next()
			continue
		}
		break
	}

	if p.isKeyword(kwWith) {
		p.next()
		t := p.next()
		if t.kind != tokNumber {
			return nil, errors.Configurationf("expected weight after %q at offset %d, found %s", kwWith, t.pos, t)
		}
		w, err := strconv.ParseFloat(t.text, 64)
		if err != nil || w < 0 || w > 1 {
			return nil, errors.Configurationf("weight %s must be a number in [0, 1]", t)
		}
		rule.Weight = w
	}

	if t := p.peek(); t.kind != tokEOF {
		return nil, errors.Configurationf("unexpected %s at offset %d", t, t.pos)
	}
	return rule, nil
}

func (p *parser) disjunction() (Expression, error) {
	left, err := p.conjunction()
	if err != nil {
		return nil, err
	}
	for p.isKeyword(kwOr) {
		p.next()
		right, err := p.conjunction()
		if err != nil {
			return nil, err
		}
		left = &Operator{Connective: Or, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) conjunction() (Expression, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}
	for p.isKeyword(kwAnd) {
		p.next()
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		left = &Operator{Connective: And, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) factor() (Expression, error) {
	if p.peek().kind == tokLParen {
		open := p.next()
		inner, err := p.disjunction()
		if err != nil {
			return nil, err
		}
		if t := p.next(); t.kind != tokRParen {
			return nil, errors.Configurationf("unbalanced parenthesis opened at offset %d, found %s", open.pos, t)
		}
		return inner, nil
	}
	return p.proposition()
}

func (p *parser) proposition() (Expression, error) {
	variable, err := p.identifier("variable name")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword(kwIs); err != nil {
		return nil, err
	}
	negated := false
	if p.isKeyword(kwNot) {
		p.next()
		negated = true
	}
	term, err := p.identifier("term label")
	if err != nil {
		return nil, err
	}
	return &Proposition{Variable: variable, Term: term, Negated: negated}, nil
}

func (p *parser) consequent() (Consequent, error) {
	variable, err := p.identifier("output variable name")
	if err != nil {
		return Consequent{}, err
	}
	if err := p.expectKeyword(kwIs); err != nil {
		return Consequent{}, err
	}
	term, err := p.identifier("output term label")
	if err != nil {
		return Consequent{}, err
	}
	return Consequent{Variable: variable, Term: term}, nil
}
