package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord(t *testing.T) {
	key, err := Record("test", "app", "person", "tobie")
	require.NoError(t, err)
	assert.Equal(t, "/*test\x00*app\x00*person\x00*tobie\x00", string(key))

	dec, err := Decode(key)
	require.NoError(t, err)
	assert.Equal(t, RecordKey{NS: "test", DB: "app", TB: "person", ID: "tobie"}, dec)
}

func TestTableRangeContainsRecords(t *testing.T) {
	r, err := TableRange("test", "app", "person")
	require.NoError(t, err)

	in, _ := Record("test", "app", "person", "a")
	other, _ := Record("test", "app", "personal", "a")
	otherDB, _ := Record("test", "apps", "person", "a")

	assert.True(t, r.Contains(string(in)))
	assert.False(t, r.Contains(string(other)))
	assert.False(t, r.Contains(string(otherDB)))
}

func TestInvalidNames(t *testing.T) {
	_, err := Record("", "app", "person", "a")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = Record("test", "app", "per\x00son", "a")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = Record("test", "app", "person", "")
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = Table("test", "", "person")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestDecodeInvalid(t *testing.T) {
	for _, key := range []string{
		"",
		"*test\x00",
		"/*test\x00*app\x00*person\x00",
		"/*test\x00*app\x00*person\x00*a",
		"/*test\x00*app\x00*person\x00*a\x00x",
	} {
		_, err := Decode([]byte(key))
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}
