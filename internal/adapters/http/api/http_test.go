package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	events "github.com/okian/naja/internal/adapters/events"
	"github.com/okian/naja/internal/adapters/http/api"
	repository "github.com/okian/naja/internal/adapters/repository"
	"github.com/okian/naja/internal/domain/model"
	"github.com/okian/naja/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

// Mock implementations for testing
type mockDeps struct {
	mu sync.Mutex

	leaderboard    []model.LeaderboardRow
	leaderboardErr error
	history        []model.HistoryRow
	historyErr     error
	historyOrder   repository.Order

	player   string
	resolved []string

	bus *events.Bus
}

func newMockDeps() *mockDeps {
	return &mockDeps{player: "AAA", bus: events.NewBus()}
}

func (m *mockDeps) Leaderboard(_ context.Context) ([]model.LeaderboardRow, error) {
	return m.leaderboard, m.leaderboardErr
}

func (m *mockDeps) History(_ context.Context, order repository.Order) ([]model.HistoryRow, error) {
	m.mu.Lock()
	m.historyOrder = order
	m.mu.Unlock()
	return m.history, m.historyErr
}

func (m *mockDeps) Player(_ context.Context) string { return m.player }

func (m *mockDeps) ResolvePlayer(_ context.Context, name string) {
	m.mu.Lock()
	m.resolved = append(m.resolved, name)
	m.player = name
	m.mu.Unlock()
}

func (m *mockDeps) Resolved() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.resolved))
	copy(out, m.resolved)
	return out
}

func (m *mockDeps) Order() repository.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.historyOrder
}

func (m *mockDeps) ConnState() string { return "connected" }

func (m *mockDeps) Subscribe() (string, <-chan events.Event) { return m.bus.Subscribe() }

func (m *mockDeps) Unsubscribe(id string) { m.bus.Unsubscribe(id) }

func (m *mockDeps) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "player": m.player}
}

func newTestServer(deps *mockDeps) *httptest.Server {
	mux := http.NewServeMux()
	api.NewServer(deps, deps).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func TestHealthEndpoint(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := newMockDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When GET /healthz is requested", func() {
			resp, err := http.Get(srv.URL + "/healthz")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then it reports ok", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var body map[string]string
				So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
				So(body["status"], ShouldEqual, "ok")
			})
		})
	})
}

func TestLeaderboardEndpoint(t *testing.T) {
	Convey("Given a ranking with rows", t, func() {
		deps := newMockDeps()
		deps.leaderboard = []model.LeaderboardRow{
			{Rank: 1, Player: "BOB", PlaytimeMS: 30_000},
			{Rank: 2, Player: "EVE", PlaytimeMS: 60_000},
		}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When GET /leaderboard is requested", func() {
			resp, err := http.Get(srv.URL + "/leaderboard")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the rows come back in rank order", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var rows []model.LeaderboardRow
				So(json.NewDecoder(resp.Body).Decode(&rows), ShouldBeNil)
				So(rows, ShouldHaveLength, 2)
				So(rows[0].Player, ShouldEqual, "BOB")
			})
		})

		Convey("When the store fails", func() {
			deps.leaderboardErr = errors.New("disk gone")
			resp, err := http.Get(srv.URL + "/leaderboard")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("When POST /leaderboard is attempted", func() {
			resp, err := http.Post(srv.URL+"/leaderboard", "application/json", strings.NewReader("{}"))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given an empty ranking", t, func() {
		deps := newMockDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When GET /leaderboard is requested", func() {
			resp, err := http.Get(srv.URL + "/leaderboard")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then an empty array is returned, not null", func() {
				var raw json.RawMessage
				So(json.NewDecoder(resp.Body).Decode(&raw), ShouldBeNil)
				So(strings.TrimSpace(string(raw)), ShouldEqual, "[]")
			})
		})
	})
}

func TestHistoryEndpoint(t *testing.T) {
	Convey("Given a history log", t, func() {
		deps := newMockDeps()
		deps.history = []model.HistoryRow{
			{Seq: 2, Record: model.Record{Player: "BOB"}},
			{Seq: 1, Record: model.Record{Player: "AAA"}},
		}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When GET /history is requested without parameters", func() {
			resp, err := http.Get(srv.URL + "/history")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then it defaults to newest-first", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(deps.Order(), ShouldEqual, repository.NewestFirst)
			})
		})

		Convey("When order=asc is requested", func() {
			resp, err := http.Get(srv.URL + "/history?order=asc")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(deps.Order(), ShouldEqual, repository.OldestFirst)
		})

		Convey("When an unknown order is requested", func() {
			resp, err := http.Get(srv.URL + "/history?order=sideways")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestPlayerEndpoint(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := newMockDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When GET /player is requested", func() {
			resp, err := http.Get(srv.URL + "/player")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the active name is returned", func() {
				var body map[string]string
				So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
				So(body["name"], ShouldEqual, "AAA")
			})
		})

		Convey("When POST /player carries a name", func() {
			resp, err := http.Post(srv.URL+"/player", "application/json",
				strings.NewReader(`{"name":" BOB "}`))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the trimmed name resolves the gate", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(deps.Resolved(), ShouldResemble, []string{"BOB"})
			})
		})

		Convey("When POST /player carries no name", func() {
			resp, err := http.Post(srv.URL+"/player", "application/json",
				strings.NewReader(`{"name":"  "}`))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			So(deps.Resolved(), ShouldBeEmpty)
		})

		Convey("When POST /player carries invalid JSON", func() {
			resp, err := http.Post(srv.URL+"/player", "application/json",
				strings.NewReader(`{`))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestStatsEndpoint(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := newMockDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When GET /stats is requested", func() {
			resp, err := http.Get(srv.URL + "/stats")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then service statistics are returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var stats map[string]interface{}
				So(json.NewDecoder(resp.Body).Decode(&stats), ShouldBeNil)
				So(stats["started"], ShouldBeTrue)
			})
		})
	})
}

func TestMetricsEndpoint(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := newMockDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When GET /metrics is requested", func() {
			resp, err := http.Get(srv.URL + "/metrics")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})
	})
}

func TestStreamEndpoint(t *testing.T) {
	Convey("Given the API server", t, func() {
		deps := newMockDeps()
		srv := newTestServer(deps)
		defer srv.Close()

		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"

		Convey("When a client connects to /stream", func() {
			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			So(err, ShouldBeNil)
			defer conn.Close()

			Convey("Then the first message reports the connection state", func() {
				var ev events.Event
				So(conn.ReadJSON(&ev), ShouldBeNil)
				So(ev.Kind, ShouldEqual, events.KindConnState)
				So(ev.State, ShouldEqual, "connected")
			})

			Convey("And published events are relayed", func() {
				var first events.Event
				So(conn.ReadJSON(&first), ShouldBeNil)

				// Publishing races with subscriber registration; publish
				// repeatedly until the relay delivers.
				stop := make(chan struct{})
				done := make(chan struct{})
				go func() {
					defer close(done)
					for {
						select {
						case <-stop:
							return
						default:
							deps.bus.Publish(context.Background(),
								events.Event{Kind: events.KindPromptRequested})
							time.Sleep(20 * time.Millisecond)
						}
					}
				}()

				var ev events.Event
				So(conn.ReadJSON(&ev), ShouldBeNil)
				So(ev.Kind, ShouldEqual, events.KindPromptRequested)
				close(stop)
				<-done
			})

			Convey("And a name reply over the socket resolves the player", func() {
				var first events.Event
				So(conn.ReadJSON(&first), ShouldBeNil)

				So(conn.WriteJSON(map[string]string{"name": "BOB"}), ShouldBeNil)

				deadline := time.After(2 * time.Second)
				for len(deps.Resolved()) == 0 {
					select {
					case <-deadline:
						t.Fatal("name reply never resolved")
					case <-time.After(10 * time.Millisecond):
					}
				}
				So(deps.Resolved(), ShouldResemble, []string{"BOB"})
			})
		})
	})
}
