package interceptor

import (
	"testing"

	"github.com/pion/interceptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayoutDelayExtension_Marshal(t *testing.T) {
	tests := []struct {
		name    string
		ext     PlayoutDelayExtension
		want    []byte
		wantErr error
	}{
		{
			name: "zero delays",
			ext:  PlayoutDelayExtension{MinDelayMs: 0, MaxDelayMs: 0},
			want: []byte{0x00, 0x00, 0x00},
		},
		{
			name: "typical hint",
			ext:  PlayoutDelayExtension{MinDelayMs: 200, MaxDelayMs: 400},
			want: []byte{0x01, 0x40, 0x28},
		},
		{
			name: "maximum representable",
			ext:  PlayoutDelayExtension{MinDelayMs: 40950, MaxDelayMs: 40950},
			want: []byte{0xFF, 0xFF, 0xFF},
		},
		{
			name: "sub-unit values truncate to 10ms",
			ext:  PlayoutDelayExtension{MinDelayMs: 15, MaxDelayMs: 29},
			want: []byte{0x00, 0x10, 0x02},
		},
		{
			name:    "negative min",
			ext:     PlayoutDelayExtension{MinDelayMs: -10, MaxDelayMs: 100},
			wantErr: ErrPlayoutDelayInvalid,
		},
		{
			name:    "min above max",
			ext:     PlayoutDelayExtension{MinDelayMs: 500, MaxDelayMs: 100},
			wantErr: ErrPlayoutDelayInvalid,
		},
		{
			name:    "beyond representable range",
			ext:     PlayoutDelayExtension{MinDelayMs: 0, MaxDelayMs: 40960},
			wantErr: ErrPlayoutDelayInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.ext.Marshal()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlayoutDelayExtension_Unmarshal(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		orig := PlayoutDelayExtension{MinDelayMs: 120, MaxDelayMs: 1500}
		raw, err := orig.Marshal()
		require.NoError(t, err)

		var decoded PlayoutDelayExtension
		require.NoError(t, decoded.Unmarshal(raw))
		assert.Equal(t, orig, decoded)
	})

	t.Run("nibble boundaries decode correctly", func(t *testing.T) {
		// min = 0xABC units, max = 0xDEF units
		var decoded PlayoutDelayExtension
		require.NoError(t, decoded.Unmarshal([]byte{0xAB, 0xCD, 0xEF}))
		assert.Equal(t, 0xABC*10, decoded.MinDelayMs)
		assert.Equal(t, 0xDEF*10, decoded.MaxDelayMs)
	})

	t.Run("payload too small", func(t *testing.T) {
		var decoded PlayoutDelayExtension
		assert.ErrorIs(t, decoded.Unmarshal([]byte{0x01, 0x40}), ErrPlayoutDelayTooSmall)
		assert.ErrorIs(t, decoded.Unmarshal(nil), ErrPlayoutDelayTooSmall)
	})
}

func TestFindPlayoutDelayID(t *testing.T) {
	exts := []interceptor.RTPHeaderExtension{
		{URI: "urn:ietf:params:rtp-hdrext:sdes:mid", ID: 1},
		{URI: PlayoutDelayURI, ID: 6},
	}

	assert.Equal(t, uint8(6), FindPlayoutDelayID(exts))
	assert.Equal(t, uint8(0), FindPlayoutDelayID(nil))
	assert.Equal(t, uint8(0), FindPlayoutDelayID(exts[:1]), "absent extension returns the invalid ID 0")
}
