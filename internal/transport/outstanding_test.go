package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutstandingBufferLookup(t *testing.T) {
	b := newOutstandingBuffer(4)
	b.push(1, []uint32{0xAA})
	b.push(2, []uint32{0xBB})

	words, ok := b.lookup(1)
	assert.True(t, ok)
	assert.Equal(t, []uint32{0xAA}, words)

	_, ok = b.lookup(99)
	assert.False(t, ok)
}

func TestOutstandingBufferEvictsOldestWhenFull(t *testing.T) {
	b := newOutstandingBuffer(2)
	b.push(1, []uint32{1})
	b.push(2, []uint32{2})
	b.push(3, []uint32{3})

	_, ok := b.lookup(1)
	assert.False(t, ok, "oldest entry should have been evicted")

	_, ok = b.lookup(2)
	assert.True(t, ok)
	_, ok = b.lookup(3)
	assert.True(t, ok)
}
