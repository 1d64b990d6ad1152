package texnorm

import "strings"

// escapeScreenDollars escapes unescaped literal $ characters inside the
// screen-like environments so the converter never enters math mode there.
// Bodies are otherwise passed through untouched; a rendering filter converts
// them later. Environment matching is non-nested (these environments never
// nest in practice).
func (n *Normalizer) escapeScreenDollars(text string) string {
	for _, env := range n.opts.ScreenEnvs {
		begin := `\begin{` + env + `}`
		end := `\end{` + env + `}`
		var b strings.Builder
		pos := 0
		for {
			i := strings.Index(text[pos:], begin)
			if i < 0 {
				b.WriteString(text[pos:])
				break
			}
			i += pos
			j := strings.Index(text[i+len(begin):], end)
			if j < 0 {
				b.WriteString(text[pos:])
				break
			}
			bodyStart := i + len(begin)
			bodyEnd := bodyStart + j
			b.WriteString(text[pos:bodyStart])
			b.WriteString(escapeUnescapedDollars(text[bodyStart:bodyEnd]))
			b.WriteString(end)
			pos = bodyEnd + len(end)
		}
		text = b.String()
	}
	return text
}

// escapeUnescapedDollars prefixes every $ not already escaped.
func escapeUnescapedDollars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '$' && (i == 0 || s[i-1] != '\\') {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
