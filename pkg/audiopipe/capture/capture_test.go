package capture

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytesToFloat32_DecodesLittleEndian(t *testing.T) {
	want := []float32{0.25, -0.5, 1.0}
	buf := make([]byte, len(want)*4)
	for i, v := range want {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}

	got := bytesToFloat32(buf, len(want))
	assert.Equal(t, want, got)
}

func TestBytesToFloat32_CapsAtAvailableBytes(t *testing.T) {
	buf := make([]byte, 4) // one sample's worth
	got := bytesToFloat32(buf, 10)
	assert.Len(t, got, 1)
}

func TestContainsFold_CaseInsensitiveSubstring(t *testing.T) {
	assert.True(t, containsFold("USB Microphone (Realtek)", "microphone"))
	assert.True(t, containsFold("Built-in Mic", "Built-in Mic"))
	assert.False(t, containsFold("Built-in Mic", "Interface"))
	assert.False(t, containsFold("short", "longer than short"))
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, uint32(48000), cfg.SampleRate)
	assert.Equal(t, uint32(1), cfg.Channels)
	assert.Equal(t, 64, cfg.FrameCapacity)
}
