// SPDX-License-Identifier: MIT

package proc

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineRing(t *testing.T) {
	r := NewLineRing(3)

	// writes
	_, _ = fmt.Fprintf(r, "line1\n")
	_, _ = fmt.Fprintf(r, "line2\n")

	last := r.LastN(10)
	assert.Equal(t, []string{"line1", "line2"}, last)

	_, _ = fmt.Fprintf(r, "line3\n")
	last = r.LastN(10)
	assert.Equal(t, []string{"line1", "line2", "line3"}, last)

	// Wrap
	_, _ = fmt.Fprintf(r, "line4\n")
	last = r.LastN(10)
	assert.Equal(t, []string{"line2", "line3", "line4"}, last)

	last = r.LastN(2)
	assert.Equal(t, []string{"line3", "line4"}, last)
}

func TestLineRing_Partial(t *testing.T) {
	r := NewLineRing(5)
	_, _ = r.Write([]byte("foo\nbar\n"))

	last := r.LastN(10)
	assert.Equal(t, []string{"foo", "bar"}, last)
}

func TestLineRing_TailBounded(t *testing.T) {
	r := NewLineRing(10)
	_, _ = r.Write([]byte(strings.Repeat("x", 600) + "\n"))
	_, _ = r.Write([]byte(strings.Repeat("y", 600) + "\n"))

	tail := r.Tail(1000)
	assert.Len(t, tail, 1000)
	assert.True(t, strings.HasSuffix(tail, strings.Repeat("y", 600)))
}
