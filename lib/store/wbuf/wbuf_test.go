package wbuf

import (
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/ValentinKolb/dQL/lib/db"
	"github.com/ValentinKolb/dQL/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceFetch serves chunks from a sorted map of committed data
func sliceFetch(data map[string]string, calls *int) FetchFunc {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return func(start, end string, limit int) ([]KV, bool, error) {
		*calls++
		var out []KV
		for _, k := range keys {
			if k < start || (end != "" && k >= end) {
				continue
			}
			if len(out) == limit {
				return out, true, nil
			}
			out = append(out, KV{Key: k, Value: []byte(data[k])})
		}
		return out, false, nil
	}
}

func drain(t *testing.T, it store.Iterator) string {
	t.Helper()
	defer it.Close()
	var parts []string
	for it.Next() {
		parts = append(parts, it.Key()+"="+string(it.Value()))
	}
	require.NoError(t, it.Err())
	return strings.Join(parts, ",")
}

func TestBuffer(t *testing.T) {
	b := New()
	value := []byte("1")
	b.Put("b", value)
	value[0] = 'X'
	b.Delete("a")
	b.Put("c", []byte("3"))
	b.Put("c", []byte("33"))

	v, deleted, ok := b.Get("b")
	assert.True(t, ok)
	assert.False(t, deleted)
	assert.Equal(t, []byte("1"), v, "buffer must copy values")

	_, deleted, ok = b.Get("a")
	assert.True(t, ok)
	assert.True(t, deleted)

	_, _, ok = b.Get("z")
	assert.False(t, ok)

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []db.Write{
		{Key: "a", Delete: true},
		{Key: "b", Value: []byte("1")},
		{Key: "c", Value: []byte("33")},
	}, b.Writes())

	assert.Equal(t, []db.Write{{Key: "b", Value: []byte("1")}}, b.Range(store.Range{Start: "b", End: "c"}))

	b.Reset()
	assert.Equal(t, 0, b.Len())
}

func TestChunked(t *testing.T) {
	data := map[string]string{"a": "1", "b": "2", "c": "3", "d": "4", "e": "5"}

	calls := 0
	it := Chunked(sliceFetch(data, &calls), store.Range{}, 2)
	assert.Equal(t, "a=1,b=2,c=3,d=4,e=5", drain(t, it))
	assert.Equal(t, 3, calls)

	calls = 0
	it = Chunked(sliceFetch(data, &calls), store.Range{Start: "b", End: "d"}, 10)
	assert.Equal(t, "b=2,c=3", drain(t, it))
	assert.Equal(t, 1, calls)

	calls = 0
	it = Chunked(sliceFetch(data, &calls), store.Range{Start: "x"}, 10)
	assert.Equal(t, "", drain(t, it))
}

func TestChunkedError(t *testing.T) {
	boom := errors.New("boom")
	it := Chunked(func(string, string, int) ([]KV, bool, error) {
		return nil, false, boom
	}, store.Range{}, 10)

	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), boom)
	assert.False(t, it.Next())
}

func TestMerge(t *testing.T) {
	data := map[string]string{"a": "1", "b": "2", "c": "3", "e": "5"}

	b := New()
	b.Put("b", []byte("22")) // shadows
	b.Delete("c")            // hides
	b.Put("d", []byte("4"))  // inserts
	b.Delete("x")            // delete of a missing key
	b.Put("f", []byte("6"))  // after all committed keys

	calls := 0
	r := store.Range{}
	it := Merge(Chunked(sliceFetch(data, &calls), r, 1), b.Range(r))
	assert.Equal(t, "a=1,b=22,d=4,e=5,f=6", drain(t, it))

	calls = 0
	r = store.Range{Start: "b", End: "e"}
	it = Merge(Chunked(sliceFetch(data, &calls), r, 2), b.Range(r))
	assert.Equal(t, "b=22,d=4", drain(t, it))
}

func TestMergeOnlyOverlay(t *testing.T) {
	b := New()
	b.Put("a", []byte("1"))
	b.Delete("b")

	calls := 0
	it := Merge(Chunked(sliceFetch(map[string]string{}, &calls), store.Range{}, 5), b.Range(store.Range{}))
	assert.Equal(t, "a=1", drain(t, it))
}
