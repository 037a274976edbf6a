package scanner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_StripComments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		keep []string
		gone []string
	}{
		{
			name: "line comment blanked",
			src:  "const a = 1; // eval(\"1\")\nconst b = 2;\n",
			keep: []string{"const a = 1;", "const b = 2;"},
			gone: []string{"eval"},
		},
		{
			name: "block comment blanked",
			src:  "a; /* eval( */ b;",
			keep: []string{"a;", "b;"},
			gone: []string{"eval"},
		},
		{
			name: "multi line block comment blanked",
			src:  "a;\n/*\nimport fs from \"fs\";\neval(x)\n*/\nb;",
			keep: []string{"a;", "b;"},
			gone: []string{"import", "eval"},
		},
		{
			name: "comment markers inside strings survive",
			src:  `const url = "https://example.com";`,
			keep: []string{`"https://example.com"`},
		},
		{
			name: "import specifier strings survive",
			src:  `import fs from "fs";`,
			keep: []string{`import fs from "fs";`},
		},
		{
			name: "escaped quote does not end the string",
			src:  `const s = 'it\'s // fine'; const x = 1; // gone`,
			keep: []string{`'it\'s // fine'`, "const x = 1;"},
			gone: []string{"gone"},
		},
		{
			name: "template literal survives",
			src:  "const t = `a // b /* c */`;",
			keep: []string{"`a // b /* c */`"},
		},
		{
			name: "division is not a comment",
			src:  "const half = total / 2;",
			keep: []string{"const half = total / 2;"},
		},
		{
			name: "unterminated block comment blanks the rest",
			src:  "a; /* never closed\neval(x)",
			keep: []string{"a;"},
			gone: []string{"eval"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := stripComments(tt.src)

			assert.Len(t, got, len(tt.src), "stripping must preserve byte positions")
			assert.Equal(t, strings.Count(tt.src, "\n"), strings.Count(got, "\n"),
				"stripping must preserve line structure")
			for _, fragment := range tt.keep {
				assert.Contains(t, got, fragment)
			}
			for _, fragment := range tt.gone {
				assert.NotContains(t, got, fragment)
			}
		})
	}
}

func Test_StripComments_EmptyInput(t *testing.T) {
	t.Parallel()
	assert.Empty(t, stripComments(""))
}
