package scanner

import (
	"path"
	"strings"

	"github.com/portcullis-dev/portcullis/internal/domain/compat"
)

// Confidence levels for entry point classification. The signals are
// structural conventions, not proof, so even a strong match stays
// below certainty.
const (
	confidenceHigh   = 0.9
	confidenceMedium = 0.6
	confidenceLow    = 0.3
)

var testFileMarkers = []string{".test.", ".spec.", ".bench."}

func isTestFile(rel string) bool {
	base := path.Base(rel)
	for _, marker := range testFileMarkers {
		if strings.Contains(base, marker) {
			return true
		}
	}
	return false
}

var apiTypeMarkers = []string{"ExtensionAPI", "ExtensionFactory"}

var registerMarkers = []string{
	".registerTool(",
	".registerCommand(",
	".registerProvider(",
	".registerFlag(",
}

// classifyFile decides what role one source file plays in an extension.
// A default export shaped like an extension factory marks an entry
// point; named exports without one mark a shared module; a file that
// exports nothing is a plain script.
func classifyFile(rel, src string) compat.FileClassification {
	if isTestFile(rel) {
		return compat.FileClassification{
			Path:           rel,
			Classification: compat.Classification{Kind: compat.EntryPointNonExtension, Confidence: confidenceHigh},
			Patterns:       []string{"test-file"},
		}
	}

	var patterns []string
	addPattern := func(name string) {
		for _, existing := range patterns {
			if existing == name {
				return
			}
		}
		patterns = append(patterns, name)
	}

	var (
		defaultExportFn       bool
		defaultExportReexport bool
		defaultExportIdent    bool
		apiTypeRef            bool
		registerCall          bool
		eventSubscription     bool
		namedExport           bool
		anyExport             bool
	)

	for _, line := range strings.Split(stripComments(src), "\n") {
		trimmed := strings.TrimSpace(line)

		if !defaultExportFn &&
			(strings.HasPrefix(trimmed, "export default function") ||
				strings.HasPrefix(trimmed, "export default async function")) {
			defaultExportFn = true
			addPattern("default-export-function")
		}

		if !defaultExportReexport &&
			(strings.Contains(trimmed, "export { default }") ||
				strings.Contains(trimmed, "export {default}") ||
				strings.Contains(trimmed, "export { default,")) {
			defaultExportReexport = true
			addPattern("default-export-reexport")
		}

		// A trailing-identifier default export such as
		// "export default extension;". Function, class, object and
		// arrow forms are handled or excluded above.
		if !defaultExportIdent &&
			strings.HasPrefix(trimmed, "export default ") &&
			!strings.HasPrefix(trimmed, "export default function") &&
			!strings.HasPrefix(trimmed, "export default async") &&
			!strings.HasPrefix(trimmed, "export default class") &&
			!strings.HasPrefix(trimmed, "export default {") &&
			!strings.HasPrefix(trimmed, "export default (") &&
			strings.HasSuffix(trimmed, ";") {
			defaultExportIdent = true
			addPattern("default-export-identifier")
		}

		if !apiTypeRef {
			for _, marker := range apiTypeMarkers {
				if strings.Contains(trimmed, marker) {
					apiTypeRef = true
					addPattern("extension-api-ref")
					break
				}
			}
		}

		if !registerCall {
			for _, marker := range registerMarkers {
				if strings.Contains(trimmed, marker) {
					registerCall = true
					addPattern("register-call")
					break
				}
			}
		}

		if !eventSubscription && strings.Contains(trimmed, ".on(") {
			eventSubscription = true
			addPattern("event-subscription")
		}

		if strings.HasPrefix(trimmed, "export ") || strings.HasPrefix(trimmed, "export{") {
			anyExport = true
			if !strings.Contains(trimmed, "default") {
				namedExport = true
			}
		}
	}

	defaultExport := defaultExportFn || defaultExportReexport || defaultExportIdent
	apiUse := registerCall || eventSubscription

	classification := func(kind compat.EntryPointKind, confidence float64) compat.FileClassification {
		return compat.FileClassification{
			Path:           rel,
			Classification: compat.Classification{Kind: kind, Confidence: confidence},
			Patterns:       patterns,
		}
	}

	switch {
	case defaultExportReexport, defaultExport && (apiTypeRef || apiUse):
		return classification(compat.EntryPointMain, confidenceHigh)
	case defaultExport:
		return classification(compat.EntryPointMain, confidenceMedium)
	case namedExport, apiTypeRef && apiUse:
		return classification(compat.EntryPointSubModule, confidenceHigh)
	case !anyExport:
		return classification(compat.EntryPointNonExtension, confidenceMedium)
	default:
		return classification(compat.EntryPointUnknown, confidenceLow)
	}
}

// aggregateEntryPoint folds per-file classifications into the artifact
// level answer: the strongest entry point candidate wins, earlier paths
// break ties.
func aggregateEntryPoint(files []compat.FileClassification) compat.Classification {
	best := compat.Classification{Kind: compat.EntryPointUnknown}
	for _, f := range files {
		if f.Kind == compat.EntryPointMain && f.Confidence > best.Confidence {
			best = f.Classification
		}
	}
	if best.Kind == compat.EntryPointMain {
		return best
	}
	if len(files) > 0 {
		return compat.Classification{Kind: compat.EntryPointUnknown, Confidence: confidenceLow}
	}
	return compat.Classification{Kind: compat.EntryPointUnknown}
}
