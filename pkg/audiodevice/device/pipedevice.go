package device

import (
	"context"
	"io"
	"log/slog"

	"github.com/hmcalister/connectd/pkg/audiodevice"
	"github.com/hmcalister/connectd/pkg/frame"
	"github.com/google/uuid"
)

// --------------------------------------------------------------------------------
// PipeAudioOutputDevice

// Define an AudioOutputDevice that writes raw interleaved signed 16-bit little-endian
// samples to an io.Writer, e.g. a named pipe read by another audio server, or stdout.
//
// When the source stream closes, the writer is closed if it implements io.Closer
// (unless it is one of the standard streams, see NewPipeAudioOutputDevice).
type PipeAudioOutputDevice struct {
	ctx           context.Context
	ctxCancelFunc context.CancelFunc
	logger        *slog.Logger
	uuid          uuid.UUID

	properties audiodevice.DeviceProperties
	writer     io.Writer
	closer     io.Closer
}

// Create a new PipeAudioOutputDevice writing to w.
//
// If closeWriter is true and w implements io.Closer, w is closed with the device.
func NewPipeAudioOutputDevice(
	w io.Writer,
	closeWriter bool,
	properties audiodevice.DeviceProperties,
) *PipeAudioOutputDevice {
	uuid := uuid.New()
	logger := slog.Default().With(
		"pipe output device uuid", uuid,
	)

	var closer io.Closer
	if c, ok := w.(io.Closer); ok && closeWriter {
		closer = c
	}

	ctx, ctxCancelFunc := context.WithCancel(context.Background())
	return &PipeAudioOutputDevice{
		ctx:           ctx,
		ctxCancelFunc: ctxCancelFunc,
		logger:        logger,
		uuid:          uuid,
		properties:    properties,
		writer:        w,
		closer:        closer,
	}
}

// Set the source channel of this audio device, i.e. where data comes from.
//
// A write error is logged and the remaining frames of the stream are drained and discarded,
// such that upstream devices never block on a broken pipe.
func (d *PipeAudioOutputDevice) SetStream(sourceStream <-chan frame.PCMFrame) {
	go func() {
		var buf []byte
		broken := false
		for pcmFrame := range sourceStream {
			if broken {
				continue
			}
			buf = pcmFrame.AppendS16LE(buf[:0])
			if _, err := d.writer.Write(buf); err != nil {
				d.logger.Error("error while writing frame to pipe, discarding remaining audio", "err", err)
				broken = true
			}
		}
		d.logger.Debug("incoming audio stream closed")
		if d.closer != nil {
			if err := d.closer.Close(); err != nil {
				d.logger.Error("error while closing pipe", "err", err)
			}
		}
		d.ctxCancelFunc()
	}()
}

func (d *PipeAudioOutputDevice) WaitForClose() {
	<-d.ctx.Done()
}

func (d *PipeAudioOutputDevice) GetDeviceProperties() audiodevice.DeviceProperties {
	return d.properties
}
