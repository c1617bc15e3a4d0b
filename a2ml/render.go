package a2ml

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Render serializes doc in canonical form: sections in SectionOrder,
// fields within each section sorted lexicographically by key, two-
// space indentation, one entry per line, no trailing newline after
// the final '}'. Render(Parse(Render(d))) reproduces d's semantic
// content (round-trip guarantee; comment text is not preserved, since
// it carries no meaning).
func Render(doc *Document) string {
	var sb strings.Builder
	version := doc.Version
	if version == "" {
		version = CurrentVersion
	}
	sb.WriteString("a2ml/" + version + "\n")
	var rendered []string
	for _, tag := range SectionOrder {
		sec, ok := doc.Sections[tag]
		if !ok {
			continue
		}
		var sec1 strings.Builder
		fmt.Fprintf(&sec1, "@%s {\n", tag)
		renderEntries(&sec1, sortedEntries(sec.Entries), 1)
		sec1.WriteString("}")
		rendered = append(rendered, sec1.String())
	}
	sb.WriteString(strings.Join(rendered, "\n"))
	return sb.String()
}

// RenderCompact serializes doc with no indentation or blank lines
// between sections, for contexts where document size matters more
// than readability (e.g. embedding in a signed payload). Entries are
// separated by a single space, which the lexer treats as
// insignificant whitespace, so RenderCompact output parses back
// through Lex/Parse exactly like Render output does.
func RenderCompact(doc *Document) string {
	var sb strings.Builder
	version := doc.Version
	if version == "" {
		version = CurrentVersion
	}
	sb.WriteString("a2ml/" + version + "\n")
	for i, tag := range SectionOrder {
		sec, ok := doc.Sections[tag]
		if !ok {
			continue
		}
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString("@" + tag + "{")
		renderEntriesCompact(&sb, sortedEntries(sec.Entries))
		sb.WriteString("}")
	}
	return sb.String()
}

// sortedEntries returns entries' fields sorted lexicographically by
// key (spec's canonicalisation rule for a section's own field order).
// Nested blocks and list entries keep their original internal order,
// since a list's sequential-key order is semantically significant.
func sortedEntries(entries []Entry) []Entry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	return sorted
}

func indent(sb *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		sb.WriteString("  ")
	}
}

func renderEntries(sb *strings.Builder, entries []Entry, depth int) {
	for _, e := range entries {
		indent(sb, depth)
		switch {
		case e.IsNested():
			fmt.Fprintf(sb, "%s {\n", e.Key)
			renderEntries(sb, e.Nested, depth+1)
			indent(sb, depth)
			sb.WriteString("}\n")
		case e.Value.Kind == VList:
			fmt.Fprintf(sb, "%s {\n", e.Key)
			renderEntries(sb, listAsEntries(e.Value.List), depth+1)
			indent(sb, depth)
			sb.WriteString("}\n")
		default:
			fmt.Fprintf(sb, "%s: %s\n", e.Key, renderValue(e.Value))
		}
	}
}

func renderEntriesCompact(sb *strings.Builder, entries []Entry) {
	for i, e := range entries {
		if i > 0 {
			sb.WriteString(" ")
		}
		switch {
		case e.IsNested():
			sb.WriteString(e.Key + "{")
			renderEntriesCompact(sb, e.Nested)
			sb.WriteString("}")
		case e.Value.Kind == VList:
			sb.WriteString(e.Key + "{")
			renderEntriesCompact(sb, listAsEntries(e.Value.List))
			sb.WriteString("}")
		default:
			sb.WriteString(e.Key + ":" + renderValue(e.Value))
		}
	}
}

// listAsEntries turns a list value back into the nested-sequential-
// key block form (keys "0", "1", "2", ...) the parser's asList
// recognizes, the inverse of that convention.
func listAsEntries(vs []Value) []Entry {
	entries := make([]Entry, len(vs))
	for i, v := range vs {
		entries[i] = Entry{Key: strconv.Itoa(i), Value: v}
	}
	return entries
}

func renderValue(v Value) string {
	switch v.Kind {
	case VString:
		return quoteString(v.Str)
	case VIdentifier:
		return v.Str
	case VHash:
		return "#" + v.Hash.String()
	case VInteger:
		return strconv.FormatInt(v.Int, 10)
	case VTimestamp:
		return quoteString(v.Time.UTC().Format("2006-01-02T15:04:05Z"))
	case VBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case VBlob:
		return quoteString("base64(" + base64.StdEncoding.EncodeToString(v.Blob) + ")")
	default:
		return `""`
	}
}

func quoteString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	sb.WriteString(s)
	sb.WriteByte('"')
	return sb.String()
}
