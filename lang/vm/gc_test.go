package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGCSweepsUnreachableStrings(t *testing.T) {
	v := New(DefaultConfig(), nil)

	rooted := v.InternString("kept")
	v.push(Object(rooted))

	// Interned but never rooted anywhere: a bare InternString call leaves
	// the string reachable only through the intern table itself, and
	// removeWhite specifically exists to break that cycle.
	discarded := v.InternString("discarded")
	require.NotNil(t, discarded)

	v.collectGarbage()

	_, ok := v.strings.Get(rooted)
	require.True(t, ok, "rooted string must survive collection")

	_, ok = v.strings.Get(discarded)
	require.False(t, ok, "unrooted string must be swept")

	v.pop()
}

func TestGCKeepsObjectsReachableFromStack(t *testing.T) {
	v := New(DefaultConfig(), nil)

	fn := v.NewFunction()
	fn.Name = v.InternString("f")
	closure := v.newClosure(fn)
	v.push(Object(closure))

	before := v.objects
	v.collectGarbage()

	require.True(t, closure.isMarked == false) // cleared again after sweep
	found := false
	for o := v.objects; o != nil; o = o.header().next {
		if o == Obj(closure) {
			found = true
		}
	}
	require.True(t, found, "closure reachable from the stack must survive")
	_ = before
	v.pop()
}

func TestGCCompilerRootsSurviveCollection(t *testing.T) {
	v := New(DefaultConfig(), nil)
	fn := v.NewFunction()
	v.PushCompilerRoot(fn)

	v.collectGarbage()

	found := false
	for o := v.objects; o != nil; o = o.header().next {
		if o == Obj(fn) {
			found = true
		}
	}
	require.True(t, found, "in-progress compiler function must survive collection")
	v.PopCompilerRoot()
}

func TestGCGrowsThresholdAfterCollection(t *testing.T) {
	v := New(DefaultConfig(), nil)
	v.bytesAllocated = v.config.InitialGCThreshold + 1
	v.collectGarbage()
	require.GreaterOrEqual(t, v.nextGC, v.config.InitialGCThreshold)
}
