package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueMapKeepsInsertionOrder(t *testing.T) {
	m := NewValueMap().
		PutValue("zeta", 1).
		PutValue("alpha", "a").
		PutValue("mid", true)
	m.PutValue("zeta", 2) // overwrite keeps position

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, m.Keys())
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":2,"alpha":"a","mid":true}`, string(data))
}

func TestValueMapRemove(t *testing.T) {
	m := NewValueMap().PutValue("a", 1).PutValue("b", 2).PutValue("c", 3)
	require.NoError(t, m.Remove("b"))
	require.NoError(t, m.Remove("missing"))
	assert.Equal(t, []string{"a", "c"}, m.Keys())
	assert.False(t, m.Has("b"))
}

func TestValueMapTypedGetters(t *testing.T) {
	m := NewValueMap().
		PutValue("s", "text").
		PutValue("b", true).
		PutValue("f", 2.5).
		PutValue("i", 42).
		PutValue("i64", int64(7)).
		PutValue("nested", map[string]any{"x": "y"})

	assert.Equal(t, "text", m.String("s"))
	assert.Equal(t, "", m.String("i"))
	assert.True(t, m.Bool("b", false))
	assert.True(t, m.Bool("missing", true))
	assert.Equal(t, 2.5, m.Float64("f", 0))
	assert.Equal(t, 42.0, m.Float64("i", 0))
	assert.Equal(t, 42, m.Int("i", 0))
	assert.Equal(t, 7, m.Int("i64", 0))
	assert.Equal(t, 2, m.Int("f", 0))
	assert.Equal(t, -1, m.Int("s", -1))
	require.NotNil(t, m.Map("nested"))
	assert.Equal(t, "y", m.Map("nested").String("x"))
	assert.Nil(t, m.Map("s"))
}

func TestValueMapNilReceiver(t *testing.T) {
	var m *ValueMap
	assert.Equal(t, 0, m.Len())
	assert.Nil(t, m.Keys())
	_, ok := m.Get("x")
	assert.False(t, ok)
	assert.Equal(t, "", m.String("x"))
	assert.Nil(t, m.Copy())
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestUnmodifiableCopyRejectsWrites(t *testing.T) {
	live := NewValueMap().PutValue("a", 1).PutValue("nested", map[string]any{"k": "v"})
	frozen := live.UnmodifiableCopy()

	assert.True(t, frozen.ReadOnly())
	assert.ErrorIs(t, frozen.Put("a", 2), ErrReadOnly)
	assert.ErrorIs(t, frozen.Remove("a"), ErrReadOnly)
	frozen.PutValue("b", 3)
	assert.ErrorIs(t, frozen.Map("nested").Put("k", "changed"), ErrReadOnly)

	assert.Equal(t, 1, live.Int("a", 0))
	assert.False(t, live.Has("b"))
	assert.Equal(t, "v", live.Map("nested").String("k"))
}

func TestUnmodifiableCopyIsDetached(t *testing.T) {
	live := NewValueMap().PutValue("nested", map[string]any{"k": "v"}).PutValue("list", []any{"x"})
	frozen := live.UnmodifiableCopy()

	live.PutValue("added", true)
	require.NoError(t, live.Map("nested").Put("k", "changed"))

	assert.False(t, frozen.Has("added"))
	assert.Equal(t, "v", frozen.Map("nested").String("k"))
}

func TestPutCopiesCallerContainers(t *testing.T) {
	props := map[string]any{"k": "v"}
	nested := NewValueMap().PutValue("inner", 1)
	m := NewValueMap().PutValue("props", props).PutValue("nested", nested)

	props["k"] = "mutated"
	nested.PutValue("inner", 2)

	assert.Equal(t, "v", m.Map("props").String("k"))
	assert.Equal(t, 1, m.Map("nested").Int("inner", 0))
}

func TestValueMapUnmarshalKeepsOrder(t *testing.T) {
	var m ValueMap
	require.NoError(t, json.Unmarshal([]byte(`{"b":1,"a":{"y":[1,"two",{"z":null}],"x":false}}`), &m))
	assert.Equal(t, []string{"b", "a"}, m.Keys())
	nested := m.Map("a")
	require.NotNil(t, nested)
	assert.Equal(t, []string{"y", "x"}, nested.Keys())

	out, err := json.Marshal(&m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":1,"a":{"y":[1,"two",{"z":null}],"x":false}}`, string(out))
	assert.Equal(t, `{"b":1,"a":{"y":[1,"two",{"z":null}],"x":false}}`, string(out))
}

func TestValueMapUnmarshalRejectsNonObject(t *testing.T) {
	var m ValueMap
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &m))
}

func TestToMap(t *testing.T) {
	m := NewValueMap().PutValue("a", map[string]any{"b": []any{map[string]any{"c": 1}}})
	plain := m.ToMap()
	inner, ok := plain["a"].(map[string]any)
	require.True(t, ok)
	list, ok := inner["b"].([]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"c": 1}, list[0])
}
