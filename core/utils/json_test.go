package utils_test

import (
	"testing"

	"stocklink/core/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONMap(t *testing.T) {
	t.Run("Roundtrip", func(t *testing.T) {
		m := utils.JSONMap{"token": "abc", "limit": float64(5)}

		v, err := m.Value()
		require.NoError(t, err)

		var out utils.JSONMap
		require.NoError(t, out.Scan(v))
		assert.Equal(t, m, out)
	})

	t.Run("NilValuesAsEmptyObject", func(t *testing.T) {
		var m utils.JSONMap
		v, err := m.Value()
		require.NoError(t, err)
		assert.Equal(t, "{}", v)
	})

	t.Run("ScanBytes", func(t *testing.T) {
		var m utils.JSONMap
		require.NoError(t, m.Scan([]byte(`{"a":1}`)))
		assert.Equal(t, float64(1), m["a"])
	})

	t.Run("ScanNil", func(t *testing.T) {
		m := utils.JSONMap{"a": 1}
		require.NoError(t, m.Scan(nil))
		assert.Nil(t, m)
	})

	t.Run("ScanUnsupportedType", func(t *testing.T) {
		var m utils.JSONMap
		assert.Error(t, m.Scan(42))
	})
}

func TestJSONList(t *testing.T) {
	l := utils.JSONList{"a", float64(2)}

	v, err := l.Value()
	require.NoError(t, err)

	var out utils.JSONList
	require.NoError(t, out.Scan(v))
	assert.Equal(t, l, out)
}

func TestRemarshal(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	var m map[string]any
	require.NoError(t, utils.Remarshal(payload{Name: "x", Count: 3}, &m))
	assert.Equal(t, "x", m["name"])

	var back payload
	require.NoError(t, utils.Remarshal(m, &back))
	assert.Equal(t, 3, back.Count)
}
