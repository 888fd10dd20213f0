package vm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func mkstr(s string) *ObjString {
	return &ObjString{chars: s, hash: fnvHash(s)}
}

func TestTableSetGetDelete(t *testing.T) {
	var tbl Table
	a := mkstr("a")
	b := mkstr("b")

	require.True(t, tbl.Set(a, Number(1)))
	require.True(t, tbl.Set(b, Number(2)))
	require.False(t, tbl.Set(a, Number(3))) // overwrite, not new

	v, ok := tbl.Get(a)
	require.True(t, ok)
	require.Equal(t, Number(3), v)

	require.True(t, tbl.Delete(b))
	_, ok = tbl.Get(b)
	require.False(t, ok)

	// a tombstone left by Delete(b) must not break lookup of a.
	v, ok = tbl.Get(a)
	require.True(t, ok)
	require.Equal(t, Number(3), v)
}

func TestTableGrowsAndKeepsEntries(t *testing.T) {
	var tbl Table
	var keys []*ObjString
	for i := 0; i < 100; i++ {
		k := mkstr(fmt.Sprintf("key%d", i))
		keys = append(keys, k)
		tbl.Set(k, Number(float64(i)))
	}
	for i, k := range keys {
		v, ok := tbl.Get(k)
		require.True(t, ok)
		require.Equal(t, Number(float64(i)), v)
	}
}

func TestTableFindString(t *testing.T) {
	var tbl Table
	s := mkstr("hello")
	tbl.Set(s, Nil)

	found := tbl.FindString("hello", fnvHash("hello"))
	require.Same(t, s, found)

	require.Nil(t, tbl.FindString("nope", fnvHash("nope")))
}

func TestTableAddAll(t *testing.T) {
	var from, to Table
	a, b := mkstr("a"), mkstr("b")
	from.Set(a, Number(1))
	from.Set(b, Number(2))

	to.Set(a, Number(99)) // pre-existing entry should be overwritten by AddAll
	to.AddAll(&from)

	v, _ := to.Get(a)
	require.Equal(t, Number(1), v)
	v, _ = to.Get(b)
	require.Equal(t, Number(2), v)
}

func TestTableRemoveWhite(t *testing.T) {
	var tbl Table
	marked := mkstr("marked")
	marked.isMarked = true
	unmarked := mkstr("unmarked")

	tbl.Set(marked, Nil)
	tbl.Set(unmarked, Nil)
	tbl.removeWhite()

	_, ok := tbl.Get(marked)
	require.True(t, ok)
	_, ok = tbl.Get(unmarked)
	require.False(t, ok)
}
