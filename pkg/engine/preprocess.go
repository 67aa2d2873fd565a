package engine

import "strings"

// kwPrefix marks a keyword after preprocessing. zygomys has no keyword type,
// so :size reaches the builtins as the string "__kw_size".
const kwPrefix = "__kw_"

// preprocess rewrites catalog source into something zygomys will read:
//
//	:keyword      -> "__kw_keyword"
//	solid-box     -> solid_box
//	; comment     -> // comment
//
// String literals pass through untouched. A hyphen is only rewritten when it
// joins two identifier characters, so (- a b) and -1 keep their meaning.
func preprocess(source string) string {
	p := &preprocessor{src: source}
	p.out.Grow(len(source) + len(source)/4)
	for p.pos < len(p.src) {
		p.step()
	}
	return p.out.String()
}

type preprocessor struct {
	src string
	pos int
	out strings.Builder
}

func (p *preprocessor) peek(off int) byte {
	if p.pos+off < len(p.src) {
		return p.src[p.pos+off]
	}
	return 0
}

func (p *preprocessor) step() {
	c := p.src[p.pos]
	switch {
	case c == '"':
		p.quoted('"', true)
	case c == '`':
		p.quoted('`', false)
	case c == ';':
		p.comment()
	case c == ':' && p.peek(1) == '=':
		p.out.WriteString(":=")
		p.pos += 2
	case c == ':' && isLetter(p.peek(1)):
		p.keyword()
	case c == '-' && p.pos > 0 && isIdentChar(p.src[p.pos-1]) && isLetter(p.peek(1)):
		p.out.WriteByte('_')
		p.pos++
	default:
		p.out.WriteByte(c)
		p.pos++
	}
}

// quoted copies a string literal including both delimiters.
func (p *preprocessor) quoted(delim byte, escapes bool) {
	start := p.pos
	p.pos++
	for p.pos < len(p.src) && p.src[p.pos] != delim {
		if escapes && p.src[p.pos] == '\\' {
			p.pos++
		}
		p.pos++
	}
	if p.pos < len(p.src) {
		p.pos++
	}
	if p.pos > len(p.src) {
		p.pos = len(p.src)
	}
	p.out.WriteString(p.src[start:p.pos])
}

// comment turns a run of ';' into '//' and copies the rest of the line.
func (p *preprocessor) comment() {
	for p.pos < len(p.src) && p.src[p.pos] == ';' {
		p.pos++
	}
	end := strings.IndexByte(p.src[p.pos:], '\n')
	if end < 0 {
		end = len(p.src) - p.pos
	}
	p.out.WriteString("//")
	p.out.WriteString(p.src[p.pos : p.pos+end])
	p.pos += end
}

func (p *preprocessor) keyword() {
	j := p.pos + 1
	for j < len(p.src) && isKWChar(p.src[j]) {
		j++
	}
	p.out.WriteByte('"')
	p.out.WriteString(kwPrefix)
	p.out.WriteString(p.src[p.pos+1 : j])
	p.out.WriteByte('"')
	p.pos = j
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}
