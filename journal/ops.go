package journal

import (
	"fmt"
	"sort"
	"strings"
)

// Op is one self-closing, XML-like log tag: a named operation plus its
// attributes. Attribute order in the
// rendered tag is sorted by key so replay output is deterministic and
// byte-for-byte comparable across runs.
type Op struct {
	Name  string
	Attrs map[string]string
}

// Operation names defined by the grammar.
const (
	OpDeleteEntry    = "delete-entry"
	OpModifyEntry    = "modify-entry"
	OpMv             = "mv"
	OpCp             = "cp"
	OpRm             = "rm"
	OpReadonly       = "readonly"
	OpRunCmd         = "run-cmd"
	OpDetectConflict = "detect-conflict"
)

func newOp(name string, attrs map[string]string) Op {
	if attrs == nil {
		attrs = map[string]string{}
	}
	return Op{Name: name, Attrs: attrs}
}

// Render writes the tag in its on-disk form: `<name k="v" .../>` with
// keys sorted for determinism.
func (o Op) Render() string {
	keys := make([]string, 0, len(o.Attrs))
	for k := range o.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(o.Name)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(escapeAttr(o.Attrs[k]))
		b.WriteByte('"')
	}
	b.WriteString("/>")
	return b.String()
}

func escapeAttr(s string) string {
	r := strings.NewReplacer(`&`, "&amp;", `"`, "&quot;", "\n", "&#10;")
	return r.Replace(s)
}

func unescapeAttr(s string) string {
	r := strings.NewReplacer("&amp;", `&`, "&quot;", `"`, "&#10;", "\n")
	return r.Replace(s)
}

// ParseLine parses one rendered tag back into an Op.
func ParseLine(line string) (Op, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Op{}, fmt.Errorf("journal: empty line")
	}
	if !strings.HasPrefix(line, "<") || !strings.HasSuffix(line, "/>") {
		return Op{}, fmt.Errorf("journal: malformed tag %q", line)
	}
	body := line[1 : len(line)-2]
	fields, err := splitTag(body)
	if err != nil {
		return Op{}, err
	}
	if len(fields) == 0 {
		return Op{}, fmt.Errorf("journal: empty tag")
	}
	op := newOp(fields[0], map[string]string{})
	for _, f := range fields[1:] {
		eq := strings.IndexByte(f, '=')
		if eq < 0 {
			return Op{}, fmt.Errorf("journal: malformed attribute %q in %q", f, line)
		}
		key := f[:eq]
		raw := f[eq+1:]
		if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
			return Op{}, fmt.Errorf("journal: malformed attribute value %q", f)
		}
		op.Attrs[key] = unescapeAttr(raw[1 : len(raw)-1])
	}
	return op, nil
}

// splitTag splits "name k1=\"v1\" k2=\"v2\"" respecting quoted values
// that may contain spaces.
func splitTag(body string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			cur.WriteByte(c)
		case c == ' ' && !inQuotes:
			if cur.Len() > 0 {
				fields = append(fields, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("journal: unterminated quote in %q", body)
	}
	if cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields, nil
}
