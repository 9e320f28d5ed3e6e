package network

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cadence-media/cadence/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

func TestServer(t *testing.T) {
	Convey("Given a server with metrics", t, func() {
		m := metrics.New()
		m.StateChanged("READY")
		s := NewServer("127.0.0.1:0", func() Status {
			return Status{Media: "single", State: "READY", PositionMs: 1500, DurationMs: 30000, RepeatMode: "off", Speed: 1}
		}, m)

		Convey("When the status is requested", func() {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

			Convey("Then the snapshot is returned as JSON", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldEqual, "application/json")

				var status Status
				So(json.Unmarshal(rec.Body.Bytes(), &status), ShouldBeNil)
				So(status.State, ShouldEqual, "READY")
				So(status.PositionMs, ShouldEqual, 1500)
			})
		})

		Convey("When the metrics are requested", func() {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Convey("Then the engine collectors are exposed", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "cadence_")
			})
		})

		Convey("When an unknown path is requested", func() {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))

			Convey("Then the method is not allowed", func() {
				So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})

		Convey("When it is started and shut down", func() {
			So(s.Start(), ShouldBeNil)

			resp, err := http.Get("http://" + s.Addr() + "/status")
			So(err, ShouldBeNil)
			body, err := io.ReadAll(resp.Body)
			So(resp.Body.Close(), ShouldBeNil)

			Convey("Then it served the status over TCP and stops cleanly", func() {
				So(err, ShouldBeNil)
				So(string(body), ShouldContainSubstring, `"media":"single"`)
				So(s.Shutdown(context.Background()), ShouldBeNil)
			})
		})
	})

	Convey("Given a server without metrics", t, func() {
		s := NewServer("127.0.0.1:0", func() Status { return Status{} }, nil)

		Convey("Then /metrics is not found", func() {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}
