package a2ml

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/hyperpolymath/ochrance/hash"
)

// CurrentVersion is the A2ML wire format version this package
// produces and accepts without a migration shim.
const CurrentVersion = "1.0"

// Parse consumes a token list and produces a Manifest AST. Parse is
// total by bounded recursion: the parser's internal loop always
// either advances past at least one token or returns, and nested-
// block recursion is bounded by MaxNestingDepth, so it cannot diverge
// on any input, however malformed.
func Parse(tokens []Token) (*Document, error) {
	p := &parser{tokens: tokens}
	return p.parseDocument()
}

// ParseDocument parses a complete wire-format document, including its
// mandatory "a2ml/MAJOR.MINOR\n" header line (spec §6). It is the
// counterpart to Render, which emits the same header.
func ParseDocument(src string) (*Document, error) {
	header, rest, err := splitHeader(src)
	if err != nil {
		return nil, err
	}
	tokens, err := Lex(rest)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(tokens)
	if err != nil {
		return nil, err
	}
	doc.Version = header
	return doc, nil
}

func splitHeader(src string) (version, rest string, err error) {
	nl := strings.IndexByte(src, '\n')
	if nl < 0 {
		return "", "", newErr(KindLex, "A2ML-LEX-000", "missing header line")
	}
	line := src[:nl]
	if !strings.HasPrefix(line, "a2ml/") {
		return "", "", newErr(KindLex, "A2ML-LEX-000", "missing a2ml/MAJOR.MINOR header")
	}
	version = strings.TrimPrefix(line, "a2ml/")
	if version == "" {
		return "", "", newErr(KindLex, "A2ML-LEX-000", "empty header version")
	}
	return version, src[nl+1:], nil
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) cur() Token {
	if p.pos >= len(p.tokens) {
		return Token{Kind: TokEOF}
	}
	return p.tokens[p.pos]
}

func (p *parser) advance() Token {
	t := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *parser) parseDocument() (*Document, error) {
	doc := &Document{Version: CurrentVersion, Sections: map[string]Section{}}
	seen := map[string]bool{}

	for p.cur().Kind != TokEOF {
		tok := p.cur()
		name := tok.Kind.SectionName()
		if name == "" {
			return nil, newErrAt(KindParse, "A2ML-PAR-900", tok.Line, tok.Column, "expected a section keyword")
		}
		if seen[name] {
			return nil, newErrAt(KindParse, "A2ML-PAR-020", tok.Line, tok.Column, "duplicate-section")
		}
		seen[name] = true
		p.advance()

		sec, err := p.parseSection(name)
		if err != nil {
			return nil, err
		}
		doc.Sections[name] = sec
	}

	if !seen["manifest"] {
		return nil, newErr(KindParse, "A2ML-PAR-010", "missing-required")
	}
	return doc, nil
}

func (p *parser) expect(kind TokenKind, ruleID, msg string) (Token, error) {
	tok := p.cur()
	if tok.Kind != kind {
		return Token{}, newErrAt(KindParse, ruleID, tok.Line, tok.Column, msg)
	}
	return p.advance(), nil
}

func (p *parser) parseSection(name string) (Section, error) {
	if _, err := p.expect(TokLBrace, "A2ML-PAR-030", "expected '{'"); err != nil {
		return Section{}, err
	}
	entries, err := p.parseEntries(1)
	if err != nil {
		return Section{}, err
	}
	if len(entries) > MaxFieldsPerSection {
		return Section{}, newErr(KindParse, "A2ML-PAR-040", "section exceeds maximum field count")
	}
	if _, err := p.expect(TokRBrace, "A2ML-PAR-031", "expected '}'"); err != nil {
		return Section{}, err
	}
	return Section{Tag: name, Entries: entries}, nil
}

// parseEntries parses entry* up to a closing '}', at nesting depth
// depth. depth is strictly bounded by MaxNestingDepth, and each
// recursive call for a nested block increases depth by exactly one,
// so this cannot recurse more than MaxNestingDepth times.
func (p *parser) parseEntries(depth int) ([]Entry, error) {
	var entries []Entry
	for {
		tok := p.cur()
		if tok.Kind == TokRBrace || tok.Kind == TokEOF {
			return entries, nil
		}
		if tok.Kind != TokIdentifier {
			return nil, newErrAt(KindParse, "A2ML-PAR-050", tok.Line, tok.Column, "expected a field key")
		}
		entry, err := p.parseEntry(depth)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		if len(entries) > MaxFieldsPerSection {
			return nil, newErr(KindParse, "A2ML-PAR-040", "section exceeds maximum field count")
		}
	}
}

func (p *parser) parseEntry(depth int) (Entry, error) {
	keyTok := p.advance() // identifier, checked by caller
	key := keyTok.Text

	if p.cur().Kind == TokLBrace {
		if depth >= MaxNestingDepth {
			return Entry{}, newErrAt(KindParse, "A2ML-PAR-060", p.cur().Line, p.cur().Column, "nesting-exceeded")
		}
		p.advance()
		nested, err := p.parseEntries(depth + 1)
		if err != nil {
			return Entry{}, err
		}
		if _, err := p.expect(TokRBrace, "A2ML-PAR-031", "expected '}'"); err != nil {
			return Entry{}, err
		}
		if list, ok := asList(nested); ok {
			if len(list) > MaxListLength {
				return Entry{}, newErrAt(KindParse, "A2ML-PAR-061", keyTok.Line, keyTok.Column, "list-exceeded")
			}
			return Entry{Key: key, Value: ListValue(list), Line: keyTok.Line, Column: keyTok.Column}, nil
		}
		return Entry{Key: key, Nested: nested, Line: keyTok.Line, Column: keyTok.Column}, nil
	}

	if p.cur().Kind != TokColon && p.cur().Kind != TokEquals {
		return Entry{}, newErrAt(KindParse, "A2ML-PAR-070", p.cur().Line, p.cur().Column, "expected ':' or '=' or '{'")
	}
	p.advance()

	val, err := p.parseValue()
	if err != nil {
		return Entry{}, err
	}
	return Entry{Key: key, Value: val, Line: keyTok.Line, Column: keyTok.Column}, nil
}

func (p *parser) parseValue() (Value, error) {
	tok := p.cur()
	switch tok.Kind {
	case TokString:
		p.advance()
		return classifyStringValue(tok.Text), nil
	case TokHash:
		p.advance()
		d, err := hash.ParseDigest(tok.Text)
		if err != nil {
			return Value{}, newErrAt(KindParse, "A2ML-PAR-080", tok.Line, tok.Column, "malformed-hash")
		}
		return HashValue(d), nil
	case TokIdentifier:
		p.advance()
		return classifyIdentifierValue(tok.Text), nil
	default:
		return Value{}, newErrAt(KindParse, "A2ML-PAR-090", tok.Line, tok.Column, "expected a value")
	}
}

// asList recognizes the nested-sequential-key list convention: a
// nested block whose entries are all leaves keyed "0", "1", "2", ...
// in order is a list, not a record. Any other shape (nested sub-
// blocks, non-sequential or non-numeric keys) is left as a record.
func asList(entries []Entry) ([]Value, bool) {
	if len(entries) == 0 {
		return nil, false
	}
	vals := make([]Value, len(entries))
	for i, e := range entries {
		if e.IsNested() || e.Key != strconv.Itoa(i) {
			return nil, false
		}
		vals[i] = e.Value
	}
	return vals, true
}

func classifyIdentifierValue(text string) Value {
	if text == "true" {
		return BooleanValue(true)
	}
	if text == "false" {
		return BooleanValue(false)
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return IntegerValue(n)
	}
	return IdentifierValue(text)
}

func classifyStringValue(text string) Value {
	if strings.HasPrefix(text, "base64(") && strings.HasSuffix(text, ")") {
		payload := text[len("base64(") : len(text)-1]
		if b, err := base64.StdEncoding.DecodeString(payload); err == nil {
			return BlobValue(b)
		}
		return BlobValue(nil)
	}
	if t, err := time.Parse(time.RFC3339, text); err == nil && strings.HasSuffix(text, "Z") {
		return TimestampValue(t)
	}
	return StringValue(text)
}
