package realtime

import (
	"testing"

	apperr "github.com/agodwin-ops/olympics-pwa-laurentian/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientMessage(t *testing.T) {
	m, err := ParseClientMessage([]byte(`{"type":"ping","timestamp":1712345678}`))
	require.NoError(t, err)
	assert.Equal(t, ClientPing, m.Type)
	assert.JSONEq(t, `1712345678`, string(m.Timestamp))

	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{type:`},
		{"missing type", `{"data":{}}`},
		{"unknown type", `{"type":"drop_table"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseClientMessage([]byte(tt.raw))
			require.Error(t, err)
			assert.Equal(t, apperr.CodeMalformedMessage, apperr.CodeOf(err))
		})
	}
}

func TestClientMessageRoom(t *testing.T) {
	for _, raw := range []string{
		`{"type":"join_room","data":"unit-3"}`,
		`{"type":"join_room","data":{"room":"unit-3"}}`,
	} {
		m, err := ParseClientMessage([]byte(raw))
		require.NoError(t, err)
		room, err := m.Room()
		require.NoError(t, err)
		assert.Equal(t, "unit-3", room)
	}

	for _, raw := range []string{
		`{"type":"join_room"}`,
		`{"type":"join_room","data":"  "}`,
		`{"type":"join_room","data":42}`,
	} {
		m, err := ParseClientMessage([]byte(raw))
		require.NoError(t, err)
		_, err = m.Room()
		assert.Equal(t, apperr.CodeMalformedMessage, apperr.CodeOf(err), raw)
	}
}

func TestClientMessageStationID(t *testing.T) {
	m, _ := ParseClientMessage([]byte(`{"type":"roll_dice","data":{"station_id":4}}`))
	id, err := m.StationID()
	require.NoError(t, err)
	assert.Equal(t, 4, id)

	m, _ = ParseClientMessage([]byte(`{"type":"roll_dice","data":7}`))
	id, err = m.StationID()
	require.NoError(t, err)
	assert.Equal(t, 7, id)

	m, _ = ParseClientMessage([]byte(`{"type":"roll_dice","data":{}}`))
	_, err = m.StationID()
	assert.Error(t, err)
}
