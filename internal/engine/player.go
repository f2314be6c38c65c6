package engine

import (
	"log/slog"
	"math"
	"sync"

	"github.com/hmcalister/connectd/internal/connect"
	"github.com/hmcalister/connectd/internal/mixer"
	"github.com/hmcalister/connectd/pkg/audiodevice"
	"github.com/hmcalister/connectd/pkg/audiodevice/device"
	"github.com/hmcalister/connectd/pkg/frame"
)

const (
	eventBuffer  = 16
	sourceBuffer = 8
)

// Plays the audio of one session.
//
// While playing, decoded audio flows
//
//	engine -> format conversion -> gain (mixer filter, normalisation) -> sink
//
// The sink is opened through the SinkBuilder on the first play and kept until
// the player closes, pause and stop only stop feeding it. All methods but Events
// are only called from the goroutine running the session's control task.
type Player struct {
	logger      *slog.Logger
	config      connect.PlayerConfig
	filter      mixer.AudioFilter
	sinkBuilder connect.SinkBuilder

	events    chan connect.PlayerEvent
	closeOnce sync.Once

	// nil until the first play, and again once released
	source  chan frame.PCMFrame
	sink    audiodevice.AudioSinkDevice
	playing bool
	trackID string
}

func newPlayer(
	config connect.PlayerConfig,
	session *Session,
	filter mixer.AudioFilter,
	sinkBuilder connect.SinkBuilder,
) *Player {
	return &Player{
		logger:      session.logger.With("component", "player"),
		config:      config,
		filter:      filter,
		sinkBuilder: sinkBuilder,
		events:      make(chan connect.PlayerEvent, eventBuffer),
	}
}

func (p *Player) Events() <-chan connect.PlayerEvent {
	return p.events
}

func (p *Player) play() error {
	if p.playing {
		return nil
	}
	if p.source == nil {
		if err := p.open(); err != nil {
			return err
		}
	}
	p.playing = true
	p.emit(connect.PlayerEvent{Type: connect.PlayerEventStart, TrackID: p.trackID})
	return nil
}

// Build the sink and the pipeline feeding it.
func (p *Player) open() error {
	sink, err := p.sinkBuilder()
	if err != nil {
		p.logger.Error("could not open audio sink", "err", err)
		return err
	}

	sinkProperties := sink.GetDeviceProperties()
	source := make(chan frame.PCMFrame, sourceBuffer)

	conversion := device.NewAudioFormatConversionDevice(audiodevice.PlaybackDeviceProperties, sinkProperties)
	conversion.SetStream(source)

	var augmentations []device.AudioAugmentationFunction
	if p.filter != nil {
		augmentations = append(augmentations, p.filter.Modify)
	}
	augmentation := device.NewAudioAugmentationDevice(sinkProperties, augmentations...)
	augmentation.SetVolumeAdjustMagnitude(p.normalisationGain())
	augmentation.SetStream(conversion.GetStream())

	sink.SetStream(augmentation.GetStream())

	p.source = source
	p.sink = sink
	p.logger.Debug("audio sink opened", "sinkProperties", sinkProperties, "converts", conversion.Converts())
	return nil
}

// Frames arriving while paused or stopped are dropped.
func (p *Player) write(data []byte) {
	if !p.playing {
		return
	}
	p.source <- frame.FromS16LE(data)
}

func (p *Player) pause() {
	if !p.playing {
		return
	}
	p.playing = false
	p.emit(connect.PlayerEvent{Type: connect.PlayerEventPause, TrackID: p.trackID})
}

func (p *Player) stop() {
	if !p.playing {
		return
	}
	p.playing = false
	p.emit(connect.PlayerEvent{Type: connect.PlayerEventStop, TrackID: p.trackID})
}

func (p *Player) trackChanged(trackID string) {
	old := p.trackID
	p.trackID = trackID
	if old == trackID {
		return
	}
	p.emit(connect.PlayerEvent{Type: connect.PlayerEventChange, TrackID: trackID, OldTrackID: old})
}

// Stop for good, releasing the sink. Closes the event channel.
func (p *Player) close() {
	p.stop()
	p.release()
	p.closeOnce.Do(func() {
		close(p.events)
	})
}

// Closing the source cascades through the pipeline, the sink is released
// once WaitForClose returns.
func (p *Player) release() {
	if p.source == nil {
		return
	}
	close(p.source)
	p.sink.WaitForClose()
	p.source = nil
	p.sink = nil
	p.logger.Debug("audio sink released")
}

// Events are never allowed to stall playback, they are dropped when nobody keeps up.
func (p *Player) emit(event connect.PlayerEvent) {
	select {
	case p.events <- event:
	default:
		p.logger.Warn("dropping player event", "event", event.Type)
	}
}

func (p *Player) normalisationGain() float32 {
	if !p.config.Normalisation {
		return 1.0
	}
	return float32(math.Pow(10, float64(p.config.NormalisationPregain)/20))
}
