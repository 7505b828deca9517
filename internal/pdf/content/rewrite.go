package content

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Rule replaces every occurrence of Old with New
type Rule struct {
	Old string
	New string
}

// Rewriter applies replacement rules to the text operands of content streams.
// String operands are interpreted as Windows-1252, which covers the standard
// single byte encodings used by simple fonts. Hex strings are left untouched
// since they usually address composite font glyphs.
type Rewriter struct {
	rules   []Rule
	decoder *encoding.Decoder
	encoder *encoding.Encoder
}

// NewRewriter creates a rewriter for rules. Rules with an empty Old are ignored.
func NewRewriter(rules []Rule) *Rewriter {
	active := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Old != "" {
			active = append(active, r)
		}
	}
	return &Rewriter{
		rules:   active,
		decoder: charmap.Windows1252.NewDecoder(),
		encoder: encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder()),
	}
}

// Rules returns the active rules in application order
func (r *Rewriter) Rules() []Rule {
	return r.rules
}

// Rewrite returns stream with all matching text operands rewritten and the
// number of substitutions made per active rule. When nothing matched the input
// slice is returned as is.
func (r *Rewriter) Rewrite(stream []byte) ([]byte, []int, error) {
	counts := make([]int, len(r.rules))
	if len(r.rules) == 0 {
		return stream, counts, nil
	}

	tokens, err := Tokenize(stream)
	if err != nil {
		return nil, nil, err
	}

	var out bytes.Buffer
	last := 0
	changed := false

	emit := func(start, end int, replacement []byte) {
		out.Write(stream[last:start])
		out.Write(replacement)
		last = end
		changed = true
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok.Type {
		case TokenString:
			if text, ok := r.replace(tok.Value, counts); ok {
				emit(tok.Start, tok.End, r.encodeLiteral(text))
			}
		case TokenArrayStart:
			end := closingBracket(tokens, i)
			if end < 0 {
				continue
			}
			if r.rewriteArray(tokens[i:end+1], counts, emit) {
				i = end
			}
		}
	}

	if !changed {
		return stream, counts, nil
	}
	out.Write(stream[last:])
	return out.Bytes(), counts, nil
}

// rewriteArray handles a TJ style array of strings and kerning numbers. When a
// match spans several string elements the array collapses into one string, which
// drops the kerning. It reports whether the array was consumed; otherwise the
// elements are left for per-string handling.
func (r *Rewriter) rewriteArray(tokens []Token, counts []int, emit func(int, int, []byte)) bool {
	var joined strings.Builder
	perElement := 0
	for _, tok := range tokens[1 : len(tokens)-1] {
		switch tok.Type {
		case TokenString:
			text := r.decode(tok.Value)
			joined.WriteString(text)
			for _, rule := range r.rules {
				perElement += strings.Count(text, rule.Old)
			}
		case TokenNumber:
		default:
			return false
		}
	}

	whole := joined.String()
	total := 0
	for _, rule := range r.rules {
		total += strings.Count(whole, rule.Old)
	}
	if total <= perElement {
		return false
	}

	text, ok := r.replaceText(whole, counts)
	if !ok {
		return false
	}
	open, closing := tokens[0], tokens[len(tokens)-1]
	replacement := append([]byte{'['}, r.encodeLiteral(text)...)
	replacement = append(replacement, ']')
	emit(open.Start, closing.End, replacement)
	return true
}

// replace applies every rule to the decoded operand and reports whether it changed
func (r *Rewriter) replace(raw []byte, counts []int) (string, bool) {
	return r.replaceText(r.decode(raw), counts)
}

func (r *Rewriter) replaceText(text string, counts []int) (string, bool) {
	changed := false
	for i, rule := range r.rules {
		n := strings.Count(text, rule.Old)
		if n == 0 {
			continue
		}
		counts[i] += n
		text = strings.ReplaceAll(text, rule.Old, rule.New)
		changed = true
	}
	return text, changed
}

func (r *Rewriter) decode(raw []byte) string {
	text, err := r.decoder.Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(text)
}

func (r *Rewriter) encode(text string) string {
	raw, err := r.encoder.String(text)
	if err != nil {
		return text
	}
	return raw
}

// encodeLiteral renders text as an escaped literal string operand
func (r *Rewriter) encodeLiteral(text string) []byte {
	raw := r.encode(text)
	out := make([]byte, 0, len(raw)+2)
	out = append(out, '(')
	for i := 0; i < len(raw); i++ {
		switch ch := raw[i]; ch {
		case '(', ')', '\\':
			out = append(out, '\\', ch)
		case '\n':
			out = append(out, '\\', 'n')
		case '\r':
			out = append(out, '\\', 'r')
		default:
			out = append(out, ch)
		}
	}
	return append(out, ')')
}

// closingBracket returns the index of the ArrayEnd matching tokens[open], or -1
// when the array is nested or unterminated
func closingBracket(tokens []Token, open int) int {
	for j := open + 1; j < len(tokens); j++ {
		switch tokens[j].Type {
		case TokenArrayEnd:
			return j
		case TokenArrayStart:
			return -1
		}
	}
	return -1
}
