package router

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ezmesh/ezmesh/pkg/meshcore/codec"
)

func floodPacket(path ...byte) *codec.Packet {
	return &codec.Packet{
		Header: codec.MakeHeader(codec.RouteTypeFlood, codec.PayloadTypeGrpTxt, codec.PayloadVersion1),
		Path:   path,
	}
}

func TestShouldRebroadcastFreshPacket(t *testing.T) {
	r := New()
	require.True(t, r.ShouldRebroadcast(floodPacket(0xA1, 0xB2), 0xC3))
	require.Equal(t, uint32(1), r.RebroadcastCount())
	require.Equal(t, uint32(0), r.DuplicateCount())
}

func TestShouldRebroadcastRejectsOwnHash(t *testing.T) {
	r := New()
	require.False(t, r.ShouldRebroadcast(floodPacket(0xA1, 0xC3, 0xB2), 0xC3))
	require.Equal(t, uint32(1), r.DuplicateCount())
	require.Equal(t, uint32(0), r.RebroadcastCount())
}

func TestShouldRebroadcastRejectsNonFlood(t *testing.T) {
	r := New()
	direct := &codec.Packet{
		Header: codec.MakeHeader(codec.RouteTypeDirect, codec.PayloadTypeTxtMsg, codec.PayloadVersion1),
	}
	require.False(t, r.ShouldRebroadcast(direct, 0x01))

	transportDirect := &codec.Packet{
		Header: codec.MakeHeader(codec.RouteTypeTransportDirect, codec.PayloadTypeTxtMsg, codec.PayloadVersion1),
	}
	require.False(t, r.ShouldRebroadcast(transportDirect, 0x01))

	// Neither counts as a duplicate.
	require.Equal(t, uint32(0), r.DuplicateCount())
}

func TestShouldRebroadcastAcceptsTransportFlood(t *testing.T) {
	r := New()
	pkt := &codec.Packet{
		Header: codec.MakeHeader(codec.RouteTypeTransportFlood, codec.PayloadTypeGrpTxt, codec.PayloadVersion1),
		Path:   []byte{0x10},
	}
	require.True(t, r.ShouldRebroadcast(pkt, 0x20))
}

func TestShouldRebroadcastRejectsFullPath(t *testing.T) {
	r := New()
	pkt := floodPacket(bytes.Repeat([]byte{0x11}, codec.MaxPathSize)...)
	require.False(t, r.ShouldRebroadcast(pkt, 0x22))
	require.Equal(t, uint32(0), r.RebroadcastCount())
}

func TestRebroadcastDelayBounds(t *testing.T) {
	r := New()
	for i := 0; i < 1000; i++ {
		d := r.RebroadcastDelay()
		require.GreaterOrEqual(t, d, RebroadcastDelayMin)
		require.LessOrEqual(t, d, RebroadcastDelayMax)
	}
}

func TestReset(t *testing.T) {
	r := New()
	r.ShouldRebroadcast(floodPacket(), 0x01)
	r.ShouldRebroadcast(floodPacket(0x01), 0x01)
	require.Equal(t, uint32(1), r.RebroadcastCount())
	require.Equal(t, uint32(1), r.DuplicateCount())

	r.Reset()
	require.Equal(t, uint32(0), r.RebroadcastCount())
	require.Equal(t, uint32(0), r.DuplicateCount())
}
