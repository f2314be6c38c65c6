package frame

import (
	"encoding/binary"
	"math"
)

// A PCMFrame is a run of interleaved float32 samples in the range [-1.0, 1.0].
//
// The sample rate and number of channels are not carried with the frame,
// they are a property of the device producing or consuming the frame
// (see github.com/hmcalister/connectd/pkg/audiodevice.DeviceProperties)
type PCMFrame []float32

const maxInt16 = float32(math.MaxInt16)

// Decode interleaved signed 16-bit little-endian samples into a new PCMFrame.
// A trailing odd byte is ignored.
func FromS16LE(data []byte) PCMFrame {
	pcmFrame := make(PCMFrame, len(data)/2)
	for i := range pcmFrame {
		sample := int16(binary.LittleEndian.Uint16(data[2*i:]))
		pcmFrame[i] = float32(sample) / maxInt16
	}
	return pcmFrame
}

// Encode the frame as interleaved signed 16-bit little-endian samples,
// appending to dst. Samples outside [-1.0, 1.0] are clipped.
func (f PCMFrame) AppendS16LE(dst []byte) []byte {
	for _, sample := range f {
		sample = max(-1.0, min(1.0, sample))
		dst = binary.LittleEndian.AppendUint16(dst, uint16(int16(sample*maxInt16)))
	}
	return dst
}
