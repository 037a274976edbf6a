package values

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_NewCallID(t *testing.T) {
	id1 := NewCallID()
	id2 := NewCallID()

	assert.False(t, id1.IsZero())
	assert.NotEqual(t, id1.String(), id2.String())
}

func Test_ParseCallID(t *testing.T) {
	original := NewCallID()

	parsed, err := ParseCallID(original.String())
	require.NoError(t, err)
	assert.Equal(t, original.String(), parsed.String())

	_, err = ParseCallID("not-a-uuid")
	assert.Error(t, err)
}

func Test_CallID_JSON(t *testing.T) {
	original := NewCallID()

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded CallID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original.String(), decoded.String())
}
