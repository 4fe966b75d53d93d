package canonicalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJCS_SortsKeysRecursively(t *testing.T) {
	in := map[string]interface{}{
		"zeta":  1,
		"alpha": map[string]interface{}{"y": true, "x": false},
	}

	out, err := JCS(in)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"x":false,"y":true},"zeta":1}`, string(out))
}

func TestJCS_PreservesArrayOrder(t *testing.T) {
	in := map[string]interface{}{"list": []interface{}{"c", "a", "b"}}

	out, err := JCS(in)
	require.NoError(t, err)
	assert.Equal(t, `{"list":["c","a","b"]}`, string(out))
}

func TestJCS_NoHTMLEscaping(t *testing.T) {
	in := map[string]interface{}{"q": "a<b>&c"}

	out, err := JCS(in)
	require.NoError(t, err)
	assert.Equal(t, `{"q":"a<b>&c"}`, string(out))
}

func TestJCS_NullVersusAbsent(t *testing.T) {
	withNull, err := JCS(map[string]interface{}{"a": 1, "b": nil})
	require.NoError(t, err)

	absent, err := JCS(map[string]interface{}{"a": 1})
	require.NoError(t, err)

	assert.NotEqual(t, string(withNull), string(absent))
	assert.Equal(t, `{"a":1,"b":null}`, string(withNull))
}

func TestJCS_Deterministic(t *testing.T) {
	in := map[string]interface{}{
		"actor":    "user-1",
		"metadata": map[string]interface{}{"instrument": "HPLC-02", "run": 42},
		"success":  true,
	}

	first, err := JCS(in)
	require.NoError(t, err)
	second, err := JCS(in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCanonicalHash_StableAcrossKeyOrder(t *testing.T) {
	h1, err := CanonicalHash(map[string]interface{}{"a": 1, "b": 2})
	require.NoError(t, err)
	h2, err := CanonicalHash(map[string]interface{}{"b": 2, "a": 1})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestJCS_RejectsUnsupportedTypes(t *testing.T) {
	_, err := JCS(map[string]interface{}{"fn": func() {}})
	assert.Error(t, err)
}
