package iam

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthScopes(t *testing.T) {
	assert.NoError(t, Root().CheckDatabase("any", "thing"))

	ns := Namespace("test")
	assert.NoError(t, ns.CheckNamespace("test"))
	assert.NoError(t, ns.CheckDatabase("test", "any"))
	assert.ErrorIs(t, ns.CheckNamespace("other"), ErrNotAllowed)

	db := Database("test", "app")
	assert.NoError(t, db.CheckDatabase("test", "app"))
	assert.ErrorIs(t, db.CheckDatabase("test", "other"), ErrNotAllowed)
	assert.ErrorIs(t, db.CheckDatabase("other", "app"), ErrNotAllowed)

	assert.ErrorIs(t, None().CheckNamespace("test"), ErrNotAllowed)

	var unset *Auth
	assert.Equal(t, LevelNo, unset.Level())
	assert.ErrorIs(t, unset.CheckNamespace("test"), ErrNotAllowed)
}

func TestAuthString(t *testing.T) {
	assert.Equal(t, "KV", Root().String())
	assert.Equal(t, "NS(test)", Namespace("test").String())
	assert.Equal(t, "DB(test/app)", Database("test", "app").String())
	assert.Equal(t, "NO", None().String())
}
