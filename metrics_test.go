package etp3

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gvanem/etp3/protocol"
)

func TestClientCollector(t *testing.T) {
	client := newTestClient(t, func(s *fakeServer) {
		s.expect(protocol.CmdGetMajorVersion)
		s.dword(1)
	})
	_, err := client.GetMajorVersion()
	require.NoError(t, err)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewClientCollector(client)))

	families, err := reg.Gather()
	require.NoError(t, err)

	got := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			got[mf.GetName()] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(1), got["etp3_commands_total"])
	assert.Equal(t, float64(0), got["etp3_errors_total"])
	// one 8-byte command header went out, one header plus a dword came back
	assert.Equal(t, float64(8), got["etp3_written_bytes_total"])
	assert.Equal(t, float64(12), got["etp3_read_bytes_total"])
}
