package blueprint

import (
	"math"
	"strconv"
	"strings"
)

// MaxDepth bounds table nesting per file.
const MaxDepth = 64

// Parse reads one blueprint file: exactly one table constructor at the top
// level, optionally wrapped in the game's FooBlueprint { ... } call form.
// Anything after the value is a TrailingContent error carrying the offset.
func Parse(file, src string) (*Value, error) {
	p := &parser{lex: newLexer(file, src)}
	if err := p.advanceTok(); err != nil {
		return nil, err
	}
	// UnitBlueprint { ... }, ProjectileBlueprint { ... } etc.: a bare
	// identifier directly before the root table is the engine's constructor
	// name, not data.
	if p.tok.kind == tokIdent {
		if err := p.advanceTok(); err != nil {
			return nil, err
		}
	}
	if p.tok.kind != tokLBrace {
		return nil, p.unexpected()
	}
	root, err := p.parseTable()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, &ParseError{Kind: ErrTrailingContent, Pos: p.tok.pos, Offset: p.tok.offset}
	}
	return root, nil
}

// ParseValue reads a single value; used by tests and the round-trip check.
func ParseValue(file, src string) (*Value, error) {
	p := &parser{lex: newLexer(file, src)}
	if err := p.advanceTok(); err != nil {
		return nil, err
	}
	return p.parseValue()
}

type parser struct {
	lex   *lexer
	tok   token
	depth int
}

func (p *parser) advanceTok() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) unexpected() error {
	detail := p.tok.text
	if detail == "" {
		detail = tokenName(p.tok.kind)
	}
	return &ParseError{Kind: ErrUnexpectedToken, Pos: p.tok.pos, Offset: p.tok.offset, Detail: detail}
}

func tokenName(k tokenKind) string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokLBrace:
		return "{"
	case tokRBrace:
		return "}"
	case tokLBracket:
		return "["
	case tokRBracket:
		return "]"
	case tokEquals:
		return "="
	case tokComma:
		return ","
	case tokSemi:
		return ";"
	case tokSlash:
		return "/"
	}
	return "token"
}

func (p *parser) parseValue() (*Value, error) {
	switch p.tok.kind {
	case tokLBrace:
		return p.parseTable()
	case tokString:
		v := &Value{Kind: KindString, Str: p.tok.text, Pos: p.tok.pos}
		return v, p.advanceTok()
	case tokNumber:
		return p.parseNumber()
	case tokIdent:
		return p.parseIdent()
	}
	return nil, p.unexpected()
}

// parseIdent handles nil/true/false keywords, the Foo { ... } call-table form
// used by nested blueprint sections (Sound { ... }), and bare identifiers,
// which the dialect treats as strings.
func (p *parser) parseIdent() (*Value, error) {
	pos := p.tok.pos
	name := p.tok.text
	if err := p.advanceTok(); err != nil {
		return nil, err
	}
	switch name {
	case "nil":
		return &Value{Kind: KindNil, Pos: pos}, nil
	case "true":
		return &Value{Kind: KindBool, Bool: true, Pos: pos}, nil
	case "false":
		return &Value{Kind: KindBool, Bool: false, Pos: pos}, nil
	}
	if p.tok.kind == tokLBrace {
		return p.parseTable()
	}
	return &Value{Kind: KindString, Str: name, Pos: pos}, nil
}

// parseNumber produces an integer node when the literal has no fractional or
// exponent part and fits int64, a float node otherwise. The engine's
// tick-ratio form `10/20` is folded to a single float.
func (p *parser) parseNumber() (*Value, error) {
	pos := p.tok.pos
	off := p.tok.offset
	text := p.tok.text
	if err := p.advanceTok(); err != nil {
		return nil, err
	}
	v, err := numberValue(text, pos, off)
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokSlash {
		return v, nil
	}
	if err := p.advanceTok(); err != nil {
		return nil, err
	}
	if p.tok.kind != tokNumber {
		return nil, p.unexpected()
	}
	den, err := p.parseNumber()
	if err != nil {
		return nil, err
	}
	num, _ := v.Number()
	d, _ := den.Number()
	out := num
	if d != 0 {
		out = num / d
	}
	return &Value{Kind: KindFloat, Float: out, Pos: pos}, nil
}

func numberValue(text string, pos Pos, off int) (*Value, error) {
	if !strings.ContainsAny(text, ".eE") {
		n, err := strconv.ParseInt(text, 10, 64)
		if err == nil {
			return &Value{Kind: KindInt, Int: n, Pos: pos}, nil
		}
		// Out of int64 range; fall through to float, overflow there is fatal.
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, &ParseError{Kind: ErrNumericOverflow, Pos: pos, Offset: off, Detail: text}
	}
	return &Value{Kind: KindFloat, Float: f, Pos: pos}, nil
}

func (p *parser) parseTable() (*Value, error) {
	if p.depth >= MaxDepth {
		return nil, &ParseError{Kind: ErrResourceLimit, Pos: p.tok.pos, Offset: p.tok.offset,
			Detail: "table nesting exceeds " + strconv.Itoa(MaxDepth)}
	}
	p.depth++
	defer func() { p.depth-- }()

	pos := p.tok.pos
	if err := p.advanceTok(); err != nil { // consume {
		return nil, err
	}
	t := &Table{}
	nextIndex := int64(1)
	for {
		if p.tok.kind == tokRBrace {
			if err := p.advanceTok(); err != nil {
				return nil, err
			}
			return &Value{Kind: KindTable, Table: t, Pos: pos}, nil
		}
		if p.tok.kind == tokEOF {
			return nil, p.unexpected()
		}
		entry, err := p.parseEntry(&nextIndex)
		if err != nil {
			return nil, err
		}
		t.Entries = append(t.Entries, entry)
		switch p.tok.kind {
		case tokComma, tokSemi:
			if err := p.advanceTok(); err != nil {
				return nil, err
			}
		case tokRBrace:
			// closing brace handled at loop top
		default:
			return nil, p.unexpected()
		}
	}
}

func (p *parser) parseEntry(nextIndex *int64) (Entry, error) {
	// [expr] = value, with expr a constant.
	if p.tok.kind == tokLBracket {
		if err := p.advanceTok(); err != nil {
			return Entry{}, err
		}
		key, err := p.parseValue()
		if err != nil {
			return Entry{}, err
		}
		if p.tok.kind != tokRBracket {
			return Entry{}, p.unexpected()
		}
		if err := p.advanceTok(); err != nil {
			return Entry{}, err
		}
		if p.tok.kind != tokEquals {
			return Entry{}, p.unexpected()
		}
		if err := p.advanceTok(); err != nil {
			return Entry{}, err
		}
		val, err := p.parseValue()
		if err != nil {
			return Entry{}, err
		}
		return entryForKey(key, val, nextIndex), nil
	}

	// name = value: an identifier followed by '=' is a key, not a value.
	if p.tok.kind == tokIdent {
		name := p.tok.text
		namePos := p.tok.pos
		if err := p.advanceTok(); err != nil {
			return Entry{}, err
		}
		if p.tok.kind == tokEquals {
			if err := p.advanceTok(); err != nil {
				return Entry{}, err
			}
			val, err := p.parseValue()
			if err != nil {
				return Entry{}, err
			}
			return Entry{Name: name, Value: val}, nil
		}
		// Not a key after all: keyword, call-table, or bare string value.
		var val *Value
		var err error
		switch name {
		case "nil":
			val = &Value{Kind: KindNil, Pos: namePos}
		case "true":
			val = &Value{Kind: KindBool, Bool: true, Pos: namePos}
		case "false":
			val = &Value{Kind: KindBool, Bool: false, Pos: namePos}
		default:
			if p.tok.kind == tokLBrace {
				val, err = p.parseTable()
				if err != nil {
					return Entry{}, err
				}
			} else {
				val = &Value{Kind: KindString, Str: name, Pos: namePos}
			}
		}
		idx := *nextIndex
		*nextIndex++
		return Entry{Index: idx, Value: val}, nil
	}

	// Bare positional value.
	val, err := p.parseValue()
	if err != nil {
		return Entry{}, err
	}
	idx := *nextIndex
	*nextIndex++
	return Entry{Index: idx, Value: val}, nil
}

// entryForKey maps an [expr] key onto the entry shape: string keys become
// named entries, positive integral numeric keys claim that positional slot
// and push the running counter past it, anything else takes the next slot.
func entryForKey(key *Value, val *Value, nextIndex *int64) Entry {
	if key != nil && key.Kind == KindString {
		return Entry{Name: key.Str, Value: val}
	}
	if n, ok := key.Number(); ok && n >= 1 && n == math.Trunc(n) {
		idx := int64(n)
		if idx >= *nextIndex {
			*nextIndex = idx + 1
		}
		return Entry{Index: idx, Value: val}
	}
	idx := *nextIndex
	*nextIndex++
	return Entry{Index: idx, Value: val}
}
