package ctx

import (
	"context"
	"testing"

	"github.com/ValentinKolb/dQL/lib/iam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainLookup(t *testing.T) {
	root := Background()
	require.NoError(t, root.Bind("a", 1))
	require.NoError(t, root.Bind("b", 2))
	require.NoError(t, root.SetNS("test"))
	require.NoError(t, root.SetAuth(iam.Root()))
	root.Freeze()

	child := root.Child()
	require.NoError(t, child.Bind("b", 3))
	require.NoError(t, child.SetDB("app"))
	child.Freeze()

	v, ok := child.Var("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, _ = child.Var("b")
	assert.Equal(t, 3, v)
	v, _ = root.Var("b")
	assert.Equal(t, 2, v)

	_, ok = child.Var("missing")
	assert.False(t, ok)

	assert.Equal(t, map[string]any{"a": 1, "b": 3}, child.Vars())
	assert.Equal(t, "test", child.NS())
	assert.Equal(t, "app", child.DB())
	assert.Equal(t, "", root.DB())
	assert.Equal(t, iam.LevelKV, child.Auth().Level())
	assert.Same(t, root, child.Parent())
}

func TestFrozen(t *testing.T) {
	c := Background().Freeze()
	assert.True(t, c.Frozen())
	assert.ErrorIs(t, c.Bind("a", 1), ErrFrozen)
	assert.ErrorIs(t, c.SetNS("x"), ErrFrozen)
	assert.ErrorIs(t, c.SetDB("x"), ErrFrozen)
	assert.ErrorIs(t, c.SetAuth(iam.Root()), ErrFrozen)

	// children of frozen nodes are mutable
	assert.NoError(t, c.Child().Bind("a", 1))
}

func TestEmptyNamespaceOverrides(t *testing.T) {
	root := Background()
	require.NoError(t, root.SetNS("test"))
	child := root.Child()
	require.NoError(t, child.SetNS(""))
	assert.Equal(t, "", child.NS())
}

func TestGoContext(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	c := New(parent).Child().Freeze()

	var _ context.Context = c
	assert.NoError(t, c.Err())
	cancel()
	<-c.Done()
	assert.ErrorIs(t, c.Err(), context.Canceled)

	d, stop := Background().WithCancel()
	stop()
	assert.ErrorIs(t, d.Err(), context.Canceled)
}
