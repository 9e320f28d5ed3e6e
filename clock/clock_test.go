package clock

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type fakeRendererClock struct {
	positionUs int64
	params     PlaybackParameters
	maxSpeed   float64
}

func (c *fakeRendererClock) PositionUs() int64 { return c.positionUs }

func (c *fakeRendererClock) SetPlaybackParameters(p PlaybackParameters) PlaybackParameters {
	if c.maxSpeed > 0 && p.Speed > c.maxSpeed {
		p.Speed = c.maxSpeed
	}
	c.params = p
	return p
}

func (c *fakeRendererClock) PlaybackParameters() PlaybackParameters { return c.params }

type fakeSource struct {
	clock     RendererClock
	ended     bool
	ready     bool
	readToEnd bool
}

func (s *fakeSource) MediaClock() RendererClock { return s.clock }
func (s *fakeSource) IsEnded() bool             { return s.ended }
func (s *fakeSource) IsReady() bool             { return s.ready }
func (s *fakeSource) HasReadStreamToEnd() bool  { return s.readToEnd }

func TestStandalone(t *testing.T) {
	Convey("Given a standalone clock", t, func() {
		fake := NewFake()
		s := NewStandalone(fake)

		Convey("It does not advance while stopped", func() {
			fake.Advance(time.Second)
			So(s.PositionUs(), ShouldEqual, 0)
		})

		Convey("It advances with real time once started", func() {
			s.Start()
			fake.Advance(time.Second)
			So(s.PositionUs(), ShouldEqual, 1_000_000)

			Convey("And freezes when stopped", func() {
				s.Stop()
				fake.Advance(time.Second)
				So(s.PositionUs(), ShouldEqual, 1_000_000)
			})
		})

		Convey("It scales by speed from the moment speed changes", func() {
			s.Start()
			fake.Advance(time.Second)
			s.SetPlaybackParameters(PlaybackParameters{Speed: 2, Pitch: 1})
			fake.Advance(time.Second)
			So(s.PositionUs(), ShouldEqual, 3_000_000)
		})

		Convey("It can be moved", func() {
			s.ResetPosition(42)
			So(s.PositionUs(), ShouldEqual, 42)
		})
	})
}

func TestMediaClock(t *testing.T) {
	Convey("Given a media clock", t, func() {
		fake := NewFake()
		var reported []PlaybackParameters
		m := NewMediaClock(fake, func(p PlaybackParameters) { reported = append(reported, p) })
		rc := &fakeRendererClock{params: DefaultParameters, maxSpeed: 1.5}
		audio := &fakeSource{clock: rc, ready: true}

		Convey("Without a renderer clock the standalone clock is used", func() {
			m.Start()
			fake.Advance(500 * time.Millisecond)
			So(m.SyncAndGetPositionUs(), ShouldEqual, 500_000)
		})

		Convey("An enabled renderer clock drives the position", func() {
			So(m.OnRendererEnabled(audio), ShouldBeNil)
			rc.positionUs = 2_000_000
			So(m.SyncAndGetPositionUs(), ShouldEqual, 2_000_000)
		})

		Convey("A second renderer clock is rejected", func() {
			So(m.OnRendererEnabled(audio), ShouldBeNil)
			other := &fakeSource{clock: &fakeRendererClock{params: DefaultParameters}}
			err := m.OnRendererEnabled(other)
			So(errors.Is(err, ErrMultipleRendererClocks), ShouldBeTrue)
		})

		Convey("Enabling the same renderer twice is harmless", func() {
			So(m.OnRendererEnabled(audio), ShouldBeNil)
			So(m.OnRendererEnabled(audio), ShouldBeNil)
		})

		Convey("Falling back from the renderer clock never jumps backwards", func() {
			m.Start()
			So(m.OnRendererEnabled(audio), ShouldBeNil)
			rc.positionUs = 5_000_000
			last := m.SyncAndGetPositionUs()
			So(last, ShouldEqual, 5_000_000)

			audio.ready = false
			audio.readToEnd = true
			for i := 0; i < 5; i++ {
				fake.Advance(10 * time.Millisecond)
				p := m.SyncAndGetPositionUs()
				So(p, ShouldBeGreaterThanOrEqualTo, last)
				last = p
			}

			audio.ended = true
			m.OnRendererDisabled(audio)
			fake.Advance(10 * time.Millisecond)
			So(m.SyncAndGetPositionUs(), ShouldBeGreaterThanOrEqualTo, last)
		})

		Convey("Playback parameters are clamped by the renderer clock and reported", func() {
			So(m.OnRendererEnabled(audio), ShouldBeNil)
			applied := m.SetPlaybackParameters(PlaybackParameters{Speed: 3, Pitch: 1})
			So(applied.Speed, ShouldEqual, 1.5)
			So(m.PlaybackParameters().Speed, ShouldEqual, 1.5)
			So(reported[len(reported)-1].Speed, ShouldEqual, 1.5)

			m.OnRendererDisabled(audio)
			So(m.PlaybackParameters().Speed, ShouldEqual, 1.5)
		})
	})
}

func TestNewParameters(t *testing.T) {
	Convey("Playback parameters must be positive", t, func() {
		_, err := NewParameters(0, 1)
		So(err, ShouldNotBeNil)
		p, err := NewParameters(2, 1)
		So(err, ShouldBeNil)
		So(p.MediaTimeUs(1_000), ShouldEqual, 2_000)
	})
}
