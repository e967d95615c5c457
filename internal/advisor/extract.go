package advisor

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ExtractJSON extracts a single JSON object from mixed advisory output.
// Models frequently wrap the payload in markdown fences or surround it with
// prose despite instructions not to. Extraction order:
//
//  1. Fenced code blocks, parsed from the markdown AST. A block tagged json
//     wins; otherwise the first fenced block containing a '{' is used.
//  2. The first balanced {...} object in the raw content.
//
// Returns empty string when no candidate object is found.
func ExtractJSON(content string) string {
	if block := fencedJSONBlock(content); block != "" {
		if obj := balancedObject(block); obj != "" {
			return obj
		}
	}
	return balancedObject(content)
}

// fencedJSONBlock returns the body of the most plausible fenced code block,
// or empty string when the content has none.
func fencedJSONBlock(content string) string {
	source := []byte(content)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var tagged, first string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var sb strings.Builder
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			sb.Write(seg.Value(source))
		}
		body := sb.String()

		lang := string(fenced.Language(source))
		if lang == "json" && tagged == "" {
			tagged = body
		}
		if first == "" && strings.Contains(body, "{") {
			first = body
		}
		return ast.WalkContinue, nil
	})

	if tagged != "" {
		return tagged
	}
	return first
}

// balancedObject returns the first brace-balanced JSON object in content,
// tracking string literals so braces inside values do not confuse the scan.
func balancedObject(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}
