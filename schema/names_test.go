package schema

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/toolbind/toolerr"
)

func TestNames_Register(t *testing.T) {
	names := NewNames()

	require.NoError(t, names.Register(Enum("Color", "red")))

	err := names.Register(Enum("Color", "blue"))
	assert.ErrorIs(t, err, toolerr.ErrInvalidSchema)

	err = names.Register(String())
	assert.ErrorIs(t, err, toolerr.ErrInvalidSchema)

	got, ok := names.Lookup("Color")
	require.True(t, ok)
	assert.Equal(t, []string{"red"}, got.Symbols)
}

func TestNames_Resolve(t *testing.T) {
	names := NewNames()
	require.NoError(t, names.Register(Fixed("MD5", 16)))

	n, err := names.Resolve(Ref("MD5"))
	require.NoError(t, err)
	assert.Equal(t, KindFixed, n.Kind)

	s := String()
	n, err = names.Resolve(s)
	require.NoError(t, err)
	assert.Same(t, s, n)

	_, err = names.Resolve(Ref("Nope"))
	assert.ErrorIs(t, err, toolerr.ErrUnresolvedReference)
	assert.Equal(t, toolerr.ErrCodeUnresolvedReference, toolerr.CodeOf(err))
}

func TestNames_Clone(t *testing.T) {
	names := NewNames()
	require.NoError(t, names.Register(Enum("A", "x")))

	clone := names.Clone()
	require.NoError(t, clone.Register(Enum("B", "y")))

	assert.Equal(t, []string{"A"}, names.Names())
	assert.Equal(t, []string{"A", "B"}, clone.Names())
}

func TestNames_CheckRefs(t *testing.T) {
	names := NewNames()
	list := Record("List",
		Field{Name: "head", Type: Long()},
		Field{Name: "tail", Type: Union(Null(), Ref("List"))},
	)
	require.NoError(t, names.Register(list))
	assert.NoError(t, names.CheckRefs(list))

	broken := Record("Broken", Field{Name: "x", Type: Array(Ref("Missing"))})
	require.NoError(t, names.Register(broken))
	err := names.CheckRefs(Map(Ref("Broken")))
	require.Error(t, err)
	assert.ErrorIs(t, err, toolerr.ErrUnresolvedReference)
	assert.Contains(t, err.Error(), "field Broken.x")
}

func TestNames_ConcurrentAccess(t *testing.T) {
	names := NewNames()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = names.Register(Enum("E", "x"))
			names.Lookup("E")
			names.Names()
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"E"}, names.Names())
}
