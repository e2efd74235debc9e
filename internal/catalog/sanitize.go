package catalog

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// MaxToolNameLen bounds generated tool identifiers.
const MaxToolNameLen = 64

// domainTerms translates common catalog vocabulary. Longer terms come first so
// that compound words win over their parts.
var domainTerms = []struct {
	term  string
	ascii string
}{
	{"人工智能", "AI"},
	{"机器学习", "ML"},
	{"深度学习", "DL"},
	{"设计", "design"},
	{"编程", "programming"},
	{"写作", "writing"},
	{"营销", "marketing"},
	{"分析", "analysis"},
	{"创意", "creative"},
	{"学习", "learning"},
	{"商业", "business"},
	{"技术", "tech"},
	{"管理", "management"},
	{"数据", "data"},
	{"前端", "frontend"},
	{"后端", "backend"},
	{"全栈", "fullstack"},
}

// Sanitize maps an arbitrary display name to a tool identifier. The result is
// non-empty ASCII, starts with a letter, has no leading, trailing or repeated
// underscores and is at most MaxToolNameLen long. CJK text that has no ASCII
// translation is replaced by a suffix derived from the input, so equal inputs
// always produce equal outputs.
func Sanitize(raw string) string {
	name := replaceInvalid(norm.NFKC.String(raw))
	if name != "" && !startsWithLetterOrUnderscore(name) {
		name = "_" + name
	}
	name = cleanUnderscores(name)

	if containsCJK(name) {
		for _, t := range domainTerms {
			name = strings.ReplaceAll(name, t.term, "_"+t.ascii+"_")
		}
		name = cleanUnderscores(name)
		if containsCJK(name) {
			ascii := cleanUnderscores(stripCJK(name))
			name = "prompt_" + stableSuffix(raw, 5)
			if ascii != "" {
				name = "prompt_" + ascii + "_" + stableSuffix(raw, 5)
			}
		}
	}

	if name == "" {
		name = "tool_" + stableSuffix(raw, 8)
	}
	if !startsWithLetterOrUnderscore(name) {
		name = "t_" + name
	}
	return truncateName(name, MaxToolNameLen)
}

// ValidToolName reports whether name satisfies the identifier grammar.
func ValidToolName(name string) bool {
	if name == "" || len(name) > MaxToolNameLen {
		return false
	}
	if !startsWithLetterOrUnderscore(name) || strings.HasPrefix(name, "_") || strings.HasSuffix(name, "_") {
		return false
	}
	if strings.Contains(name, "__") {
		return false
	}
	for _, r := range name {
		if !isIdentRune(r) {
			return false
		}
	}
	return true
}

func replaceInvalid(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isIdentRune(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}

func isIdentRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		return true
	default:
		return isCJK(r)
	}
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

func containsCJK(s string) bool {
	return strings.IndexFunc(s, isCJK) >= 0
}

func stripCJK(s string) string {
	return strings.Map(func(r rune) rune {
		if isCJK(r) {
			return '_'
		}
		return r
	}, s)
}

func startsWithLetterOrUnderscore(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func cleanUnderscores(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prev := false
	for _, r := range s {
		if r == '_' {
			if prev {
				continue
			}
			prev = true
		} else {
			prev = false
		}
		b.WriteRune(r)
	}
	return strings.Trim(b.String(), "_")
}

func truncateName(name string, limit int) string {
	if len(name) <= limit {
		return name
	}
	return strings.TrimRight(name[:limit], "_")
}

func stableSuffix(raw string, n int) string {
	id := strings.ReplaceAll(uuid.NewSHA1(uuid.NameSpaceOID, []byte(raw)).String(), "-", "")
	return id[:n]
}
