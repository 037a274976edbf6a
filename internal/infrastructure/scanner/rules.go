package scanner

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/portcullis-dev/portcullis/internal/domain/capabilities"
	"github.com/portcullis-dev/portcullis/internal/domain/compat"
)

const maxSnippetLength = 160

// sourceExtensions lists the file types the static pass inspects.
var sourceExtensions = map[string]bool{
	".js":  true,
	".ts":  true,
	".mjs": true,
	".cjs": true,
}

func isSourceFile(rel string) bool {
	return sourceExtensions[strings.ToLower(path.Ext(rel))]
}

// forbiddenModules cannot be hosted at all: they reach isolate or thread
// functionality the sandbox does not provide.
var forbiddenModules = map[string]bool{
	"vm":             true,
	"worker_threads": true,
}

type patternRule struct {
	rule    string
	class   compat.FindingClass
	verdict compat.Verdict
	message string
	re      *regexp.Regexp
}

// patternRules fire on live code only; comments are stripped before the
// source reaches them.
var patternRules = []patternRule{
	{
		rule:    "process-binding",
		class:   compat.ClassForbiddenPattern,
		verdict: compat.VerdictFail,
		message: "process.binding reaches forbidden native internals",
		re:      regexp.MustCompile(`\bprocess\.binding\s*\(`),
	},
	{
		rule:    "eval",
		class:   compat.ClassFlaggedPattern,
		verdict: compat.VerdictWarn,
		message: "dynamic code evaluation via eval()",
		re:      regexp.MustCompile(`\beval\s*\(`),
	},
	{
		rule:    "new-function",
		class:   compat.ClassFlaggedPattern,
		verdict: compat.VerdictWarn,
		message: "dynamic code evaluation via new Function()",
		re:      regexp.MustCompile(`\bnew\s+Function\s*\(`),
	},
}

// importPattern captures the module specifier of static imports,
// require calls and dynamic imports.
var importPattern = regexp.MustCompile(
	`(?:\bfrom\s*|\brequire\s*\(\s*|\bimport\s*\(\s*|\bimport\s+)["']([^"']+)["']`)

// importedCapabilities maps runtime modules to the capability kinds
// using them implies. The node: scheme prefix is normalized away before
// the lookup.
var importedCapabilities = map[string][]capabilities.Kind{
	"fs":            {capabilities.KindRead, capabilities.KindWrite},
	"fs/promises":   {capabilities.KindRead, capabilities.KindWrite},
	"child_process": {capabilities.KindExec},
	"http":          {capabilities.KindHTTP},
	"https":         {capabilities.KindHTTP},
	"net":           {capabilities.KindHTTP},
	"dns":           {capabilities.KindHTTP},
	"tls":           {capabilities.KindHTTP},
	"os":            {capabilities.KindEnv},
}

// processEnvPattern marks host environment access through the process
// global, which no import betrays.
var processEnvPattern = regexp.MustCompile(`\bprocess\.env\b`)

// lineIndex maps byte offsets in a source buffer to 1-based line
// numbers. Offsets computed on stripped text are valid against the
// original source because stripping preserves byte positions.
type lineIndex struct {
	starts []int
}

func newLineIndex(src string) *lineIndex {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{starts: starts}
}

func (ix *lineIndex) lineOf(offset int) int {
	return sort.Search(len(ix.starts), func(i int) bool {
		return ix.starts[i] > offset
	})
}

func (ix *lineIndex) lineText(src string, line int) string {
	if line < 1 || line > len(ix.starts) {
		return ""
	}
	start := ix.starts[line-1]
	end := len(src)
	if line < len(ix.starts) {
		end = ix.starts[line] - 1
	}
	text := strings.TrimSpace(src[start:end])
	if len(text) > maxSnippetLength {
		text = text[:maxSnippetLength]
	}
	return text
}

// scanSource runs the pattern tables over one source file. It returns
// forbidden and flagged findings plus every capability-implying import;
// how those imports compare to declarations and policy is the caller's
// question, not the file's.
func scanSource(rel, src string) ([]compat.Finding, []compat.ImportUse) {
	stripped := stripComments(src)
	index := newLineIndex(stripped)

	var findings []compat.Finding
	var imports []compat.ImportUse

	for _, m := range importPattern.FindAllStringSubmatchIndex(stripped, -1) {
		module := stripped[m[2]:m[3]]
		normalized := strings.TrimPrefix(module, "node:")
		line := index.lineOf(m[0])

		if forbiddenModules[normalized] {
			findings = append(findings, compat.Finding{
				Class:   compat.ClassForbiddenPattern,
				Rule:    "forbidden-module",
				Message: fmt.Sprintf("import of forbidden module %q", module),
				File:    rel,
				Line:    line,
				Snippet: index.lineText(src, line),
				Verdict: compat.VerdictFail,
			})
			continue
		}
		if kinds := importedCapabilities[normalized]; len(kinds) > 0 {
			imports = append(imports, compat.ImportUse{
				Module: module,
				Kinds:  kindTokens(kinds),
				File:   rel,
				Line:   line,
			})
		}
	}

	for _, rule := range patternRules {
		for _, m := range rule.re.FindAllStringIndex(stripped, -1) {
			line := index.lineOf(m[0])
			findings = append(findings, compat.Finding{
				Class:   rule.class,
				Rule:    rule.rule,
				Message: rule.message,
				File:    rel,
				Line:    line,
				Snippet: index.lineText(src, line),
				Verdict: rule.verdict,
			})
		}
	}

	if loc := processEnvPattern.FindStringIndex(stripped); loc != nil {
		line := index.lineOf(loc[0])
		imports = append(imports, compat.ImportUse{
			Module: "process.env",
			Kinds:  kindTokens([]capabilities.Kind{capabilities.KindEnv}),
			File:   rel,
			Line:   line,
		})
	}

	return findings, imports
}

func kindTokens(kinds []capabilities.Kind) []string {
	tokens := make([]string, 0, len(kinds))
	for _, k := range kinds {
		tokens = append(tokens, k.String())
	}
	return tokens
}

// mismatchFindings compares import-implied capability kinds against the
// manifest's declarations. One finding per undeclared kind, located at
// the first import that implied it.
func mismatchFindings(imports []compat.ImportUse, declared capabilities.Grant) []compat.Finding {
	seen := make(map[capabilities.Kind]bool)
	var findings []compat.Finding
	for _, use := range imports {
		for _, token := range use.Kinds {
			kind, err := capabilities.ParseKind(token)
			if err != nil || seen[kind] || declared.CoversKind(kind) {
				continue
			}
			seen[kind] = true
			findings = append(findings, compat.Finding{
				Class: compat.ClassCapabilityPolicy,
				Rule:  "undeclared-capability",
				Message: fmt.Sprintf("use of %q implies the %s capability, which the manifest does not declare",
					use.Module, kind),
				File:    use.File,
				Line:    use.Line,
				Verdict: compat.VerdictWarn,
			})
		}
	}
	return findings
}
