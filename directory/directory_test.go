package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetAddressResolvesNodeName(t *testing.T) {
	d := New()
	d.Set("edge-1", "0xai_abc")

	addr, ok := d.GetAddress("edge-1")
	require := assert.New(t)
	require.True(ok)
	require.Equal("0xai_abc", addr)
}

func TestGetAddressPassesThroughCanonicalAddress(t *testing.T) {
	d := New()
	addr, ok := d.GetAddress("0xai_already-canonical")
	assert.True(t, ok)
	assert.Equal(t, "0xai_already-canonical", addr)
}

func TestGetAddressUnknownNodeFails(t *testing.T) {
	d := New()
	_, ok := d.GetAddress("nope")
	assert.False(t, ok)
}

func TestReplaceSwapsEntireDirectory(t *testing.T) {
	d := New()
	d.Set("stale", "0xai_stale")

	d.Replace([]string{"edge-1", "edge-2"}, []string{"0xai_1", "0xai_2"})

	_, ok := d.GetAddress("stale")
	assert.False(t, ok)

	addr, ok := d.GetAddress("edge-2")
	assert.True(t, ok)
	assert.Equal(t, "0xai_2", addr)
}

func TestGetNodeForAddressIsTheInverseMapping(t *testing.T) {
	d := New()
	d.Set("edge-1", "0xai_abc")

	node, ok := d.GetNodeForAddress("0xai_abc")
	assert.True(t, ok)
	assert.Equal(t, "edge-1", node)
}
