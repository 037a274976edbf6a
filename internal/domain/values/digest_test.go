package values

import (
	"crypto/sha256"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ParseDigest(t *testing.T) {
	valid := "sha256:" + strings.Repeat("ab", 32)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", valid, false},
		{"uppercase hex normalized", "sha256:" + strings.Repeat("AB", 32), false},
		{"trims whitespace", "  " + valid + "  ", false},
		{"missing prefix", strings.Repeat("ab", 32), true},
		{"wrong algorithm", "sha512:" + strings.Repeat("ab", 32), true},
		{"too short", "sha256:abcd", true},
		{"non-hex characters", "sha256:" + strings.Repeat("zz", 32), true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDigest(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, strings.ToLower(strings.TrimSpace(tt.input)), d.String())
		})
	}
}

func Test_NewDigestFromSum(t *testing.T) {
	sum := sha256.Sum256([]byte("artifact bytes"))
	d := NewDigestFromSum(sum)

	parsed, err := ParseDigest(d.String())
	require.NoError(t, err)
	assert.True(t, d.Equals(parsed))
}

func Test_Digest_Short(t *testing.T) {
	d := MustParseDigest("sha256:" + strings.Repeat("ab", 32))
	assert.Equal(t, "abababababab", d.Short())
	assert.Len(t, d.Short(), 12)
}

func Test_Digest_IsZero(t *testing.T) {
	assert.True(t, Digest{}.IsZero())

	sum := sha256.Sum256([]byte("x"))
	assert.False(t, NewDigestFromSum(sum).IsZero())
}

func Test_Digest_JSON(t *testing.T) {
	original := NewDigestFromSum(sha256.Sum256([]byte("x")))

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Digest
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, original.Equals(decoded))

	var invalid Digest
	assert.Error(t, json.Unmarshal([]byte(`"not-a-digest"`), &invalid))
}
