package bytesplit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(s *Splitter) []string {
	var out []string
	for {
		v, ok := s.Next()
		if !ok {
			return out
		}
		out = append(out, string(v))
	}
}

func TestSplitter(t *testing.T) {
	tests := []struct {
		name  string
		buf   string
		sep   string
		start int
		want  []string
	}{
		{
			name: "three lines",
			buf:  "one\r\ntwo\r\nthree",
			sep:  "\r\n",
			want: []string{"one", "two", "three"},
		},
		{
			name: "no separator",
			buf:  "single",
			sep:  "\r\n",
			want: []string{"single"},
		},
		{
			name: "trailing separator yields empty final view",
			buf:  "a\r\n",
			sep:  "\r\n",
			want: []string{"a", ""},
		},
		{
			name:  "start offset skips prefix",
			buf:   "skip|a|b",
			sep:   "|",
			start: 5,
			want:  []string{"a", "b"},
		},
		{
			name: "empty buffer",
			buf:  "",
			sep:  "|",
			want: []string{""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(New([]byte(tt.buf), []byte(tt.sep), tt.start))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitterZeroCopy(t *testing.T) {
	buf := []byte("head\r\ntail")
	s := New(buf, []byte("\r\n"), 0)

	v, ok := s.Next()
	require.True(t, ok)
	require.Equal(t, "head", string(v))

	// The view aliases the original buffer.
	buf[0] = 'H'
	assert.Equal(t, "Head", string(v))
}

func TestSplitterExhausted(t *testing.T) {
	s := New([]byte("a|b"), []byte("|"), 0)
	for {
		if _, ok := s.Next(); !ok {
			break
		}
	}

	_, ok := s.Next()
	assert.False(t, ok)
	assert.Nil(t, s.Rest())
}
