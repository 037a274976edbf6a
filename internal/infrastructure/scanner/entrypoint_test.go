package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/portcullis-dev/portcullis/internal/domain/compat"
)

func Test_ClassifyFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		src        string
		kind       compat.EntryPointKind
		confidence float64
		patterns   []string
	}{
		{
			name: "default export with api type is a confident entry point",
			path: "index.ts",
			src: `import type { ExtensionAPI } from "@portcullis/sdk";
export default function (api: ExtensionAPI) {
	api.registerTool({ name: "demo" });
}`,
			kind:       compat.EntryPointMain,
			confidence: confidenceHigh,
			patterns:   []string{"extension-api-ref", "default-export-function", "register-call"},
		},
		{
			name:       "default re-export proxy is a confident entry point",
			path:       "index.ts",
			src:        `export { default } from "./extension";`,
			kind:       compat.EntryPointMain,
			confidence: confidenceHigh,
			patterns:   []string{"default-export-reexport"},
		},
		{
			name: "default export alone is a tentative entry point",
			path: "main.js",
			src: `export default function setup() {
	return 42;
}`,
			kind:       compat.EntryPointMain,
			confidence: confidenceMedium,
		},
		{
			name: "default export identifier",
			path: "index.ts",
			src: `const extension = makeExtension();
export default extension;`,
			kind:       compat.EntryPointMain,
			confidence: confidenceMedium,
			patterns:   []string{"default-export-identifier"},
		},
		{
			name: "named exports only is a sub module",
			path: "utils.ts",
			src: `export interface Config { name: string; }
export function helper(): void {}`,
			kind:       compat.EntryPointSubModule,
			confidence: confidenceHigh,
		},
		{
			name:       "no exports is not extension code",
			path:       "script.js",
			src:        "const x = 42;\nconsole.log(x);\n",
			kind:       compat.EntryPointNonExtension,
			confidence: confidenceMedium,
		},
		{
			name: "test file is never an entry point",
			path: "foo.test.ts",
			src: `import { describe, it } from "vitest";
export default function() {}`,
			kind:       compat.EntryPointNonExtension,
			confidence: confidenceHigh,
			patterns:   []string{"test-file"},
		},
		{
			name:       "spec file is never an entry point",
			path:       "nested/bar.spec.js",
			src:        "export const a = 1;",
			kind:       compat.EntryPointNonExtension,
			confidence: confidenceHigh,
		},
		{
			name: "commented default export does not count",
			path: "maybe.ts",
			src: `// export default function() {}
const y = 1;`,
			kind:       compat.EntryPointNonExtension,
			confidence: confidenceMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := classifyFile(tt.path, tt.src)

			assert.Equal(t, tt.path, got.Path)
			assert.Equal(t, tt.kind, got.Kind, "patterns: %v", got.Patterns)
			assert.InDelta(t, tt.confidence, got.Confidence, 0.001)
			for _, p := range tt.patterns {
				assert.Contains(t, got.Patterns, p)
			}
		})
	}
}

func Test_AggregateEntryPoint(t *testing.T) {
	t.Parallel()

	main := func(path string, confidence float64) compat.FileClassification {
		return compat.FileClassification{
			Path:           path,
			Classification: compat.Classification{Kind: compat.EntryPointMain, Confidence: confidence},
		}
	}
	sub := func(path string) compat.FileClassification {
		return compat.FileClassification{
			Path:           path,
			Classification: compat.Classification{Kind: compat.EntryPointSubModule, Confidence: confidenceHigh},
		}
	}

	t.Run("strongest entry point wins", func(t *testing.T) {
		t.Parallel()
		got := aggregateEntryPoint([]compat.FileClassification{
			main("fallback.ts", confidenceMedium),
			main("index.ts", confidenceHigh),
			sub("utils.ts"),
		})
		assert.Equal(t, compat.EntryPointMain, got.Kind)
		assert.InDelta(t, confidenceHigh, got.Confidence, 0.001)
	})

	t.Run("no entry point candidate is unknown", func(t *testing.T) {
		t.Parallel()
		got := aggregateEntryPoint([]compat.FileClassification{sub("utils.ts")})
		assert.Equal(t, compat.EntryPointUnknown, got.Kind)
		assert.InDelta(t, confidenceLow, got.Confidence, 0.001)
	})

	t.Run("no source files at all", func(t *testing.T) {
		t.Parallel()
		got := aggregateEntryPoint(nil)
		assert.Equal(t, compat.EntryPointUnknown, got.Kind)
		assert.Zero(t, got.Confidence)
	})
}
