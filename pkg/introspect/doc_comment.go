package introspect

import (
	"strings"
)

// ExtractDoc returns the text of the first block comment found in src,
// with per-line comment markers stripped and lines joined by spaces.
// Returns the empty string when no block comment is present.
func ExtractDoc(src string) string {
	start := strings.Index(src, "/*")
	if start < 0 {
		return ""
	}
	end := strings.Index(src[start+2:], "*/")
	if end < 0 {
		return ""
	}
	body := src[start+2 : start+2+end]

	var words []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "*")
		line = strings.TrimSpace(line)
		if line != "" {
			words = append(words, line)
		}
	}
	return strings.Join(words, " ")
}

// DocBefore scans full module source for a block comment immediately
// preceding a declaration of name and returns its extracted text. The
// declaration match is heuristic: it recognizes the common function,
// const/let/var, object-member and exports assignment forms.
func DocBefore(moduleSrc, name string) string {
	if name == "" {
		return ""
	}

	offset := 0
	for {
		start := strings.Index(moduleSrc[offset:], "/*")
		if start < 0 {
			return ""
		}
		start += offset
		end := strings.Index(moduleSrc[start+2:], "*/")
		if end < 0 {
			return ""
		}
		end = start + 2 + end + 2

		following := strings.TrimSpace(moduleSrc[end:])
		if declares(following, name) {
			return ExtractDoc(moduleSrc[start:end])
		}
		offset = end
	}
}

func declares(src, name string) bool {
	prefixes := []string{
		"function " + name,
		"async function " + name,
		"const " + name,
		"let " + name,
		"var " + name,
		"exports." + name,
		"module.exports." + name,
		name + ":",
		name + " :",
		name + "(",
		name + " (",
		name + " =",
		name + "=",
	}
	for _, p := range prefixes {
		if strings.HasPrefix(src, p) {
			return true
		}
	}
	return false
}
