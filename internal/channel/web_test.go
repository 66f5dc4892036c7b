package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"coolcar/internal/assistant"
	"coolcar/internal/booking"
	"coolcar/internal/bus"
	"coolcar/internal/composer"
	"coolcar/internal/domain"
	"coolcar/internal/memory"
	"coolcar/internal/relay"
	"coolcar/internal/review"
)

// 2026-03-11 is a Wednesday.
var clock = time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type gateway struct {
	web       *Web
	assistant *assistant.Assistant
	book      *booking.Book
	bus       *bus.InMemoryBus
}

func newGateway(t *testing.T, rl *relay.Relay) gateway {
	t.Helper()
	ctx := context.Background()
	mem := memory.New(ctx, memory.Config{Logger: testLogger()})
	book := booking.NewBook(ctx, booking.BookConfig{Logger: testLogger()})
	b := bus.New(16, testLogger())
	a := assistant.New(assistant.Config{
		Composer: composer.New(composer.Config{Memory: mem, Logger: testLogger()}),
		Book:     book,
		Relay:    rl,
		Bus:      b,
		Logger:   testLogger(),
	})
	w := NewWeb(WebConfig{
		AllowedOrigins: []string{"https://coolcarauto.example"},
		MetricsPath:    "/metrics",
		Assistant:      a,
		Book:           book,
		Reviews:        review.New(ctx, review.Config{Logger: testLogger()}),
		Relay:          rl,
		Memory:         mem,
		Logger:         testLogger(),
	})
	w.now = func() time.Time { return clock }
	w.SetBus(b)
	return gateway{web: w, assistant: a, book: book, bus: b}
}

func (g gateway) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	g.web.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

// relayRecorder is a form endpoint that records what it was sent.
type relayRecorder struct {
	mu     sync.Mutex
	posts  map[string]map[string]string
	status int
}

func newRelayServer(t *testing.T, status int) (*relayRecorder, *relay.Relay) {
	t.Helper()
	rec := &relayRecorder{posts: make(map[string]map[string]string), status: status}
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		var fields map[string]string
		_ = json.NewDecoder(r.Body).Decode(&fields)
		rec.mu.Lock()
		rec.posts[r.URL.Path] = fields
		rec.mu.Unlock()
		rw.WriteHeader(rec.status)
	}))
	t.Cleanup(srv.Close)
	return rec, relay.New(relay.Config{
		ContactEndpoint: srv.URL + "/contact",
		BookingEndpoint: srv.URL + "/booking",
		Logger:          testLogger(),
	})
}

func (r *relayRecorder) post(path string) map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.posts[path]
}

func TestChat_RepliesWithMeta(t *testing.T) {
	g := newGateway(t, nil)

	rec := g.do(t, http.MethodPost, "/api/chat", map[string]string{"chatId": "v1", "message": "my brakes are grinding"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type: got %q", ct)
	}
	var resp chatResponse
	decode(t, rec, &resp)
	if resp.ChatID != "v1" || resp.Reply == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Meta == nil || resp.Meta.Urgency != domain.UrgencyHigh {
		t.Errorf("expected high urgency meta, got %+v", resp.Meta)
	}
}

func TestChat_RejectsBadRequests(t *testing.T) {
	g := newGateway(t, nil)

	for _, body := range []any{
		map[string]string{"chatId": "v1", "message": "   "},
		map[string]string{"message": "hello"},
		"not an object",
	} {
		if rec := g.do(t, http.MethodPost, "/api/chat", body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %v: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestInsights(t *testing.T) {
	g := newGateway(t, nil)
	g.do(t, http.MethodPost, "/api/chat", map[string]string{"chatId": "v2", "message": "How much does a service cost?"})

	rec := g.do(t, http.MethodGet, "/api/chat/v2/insights", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var ins assistant.Insights
	decode(t, rec, &ins)
	if ins.MessageCount.Total != 2 || ins.MessageCount.User != 1 {
		t.Errorf("message count: got %+v", ins.MessageCount)
	}

	if rec := g.do(t, http.MethodGet, "/api/chat/nobody/insights", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown chat: expected 404, got %d", rec.Code)
	}
}

func TestGreetingAndHealth(t *testing.T) {
	g := newGateway(t, nil)

	var greeting map[string]string
	decode(t, g.do(t, http.MethodGet, "/api/greeting", nil), &greeting)
	if !strings.HasPrefix(greeting["greeting"], "Welcome to Cool Car Auto Garage!") {
		t.Errorf("greeting: got %q", greeting["greeting"])
	}

	var health map[string]string
	decode(t, g.do(t, http.MethodGet, "/healthz", nil), &health)
	if health["status"] != "ok" {
		t.Errorf("health: got %v", health)
	}
}

func TestSlots(t *testing.T) {
	g := newGateway(t, nil)

	rec := g.do(t, http.MethodGet, "/api/slots?date=tomorrow", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Date  string            `json:"date"`
		Slots []domain.TimeSlot `json:"slots"`
	}
	decode(t, rec, &resp)
	if resp.Date != "2026-03-12" {
		t.Errorf("date: got %q", resp.Date)
	}
	if len(resp.Slots) != 10 || resp.Slots[0].Time != "08:00" || !resp.Slots[0].IsAvailable {
		t.Errorf("slots: got %+v", resp.Slots)
	}

	if rec := g.do(t, http.MethodGet, "/api/slots?date=someday", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad date: expected 400, got %d", rec.Code)
	}
}

func validBooking() domain.BookingDetails {
	return domain.BookingDetails{
		CustomerName:  "Aminata Kamara",
		PhoneNumber:   "+232 76 123 4567",
		Email:         "aminata@example.com",
		VehicleMake:   "Toyota",
		VehicleModel:  "Corolla",
		VehicleYear:   "2015",
		ServiceType:   "Brake Service",
		PreferredDate: "2026-03-12",
		PreferredTime: "10am",
	}
}

func TestBooking_StoresAndRelays(t *testing.T) {
	rr, rl := newRelayServer(t, http.StatusOK)
	g := newGateway(t, rl)

	rec := g.do(t, http.MethodPost, "/api/bookings", validBooking())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp bookingResponse
	decode(t, rec, &resp)
	if resp.Booking.ID == "" || resp.Booking.Status != domain.StatusPending || resp.Booking.PreferredTime != "10:00" {
		t.Errorf("unexpected booking: %+v", resp.Booking)
	}
	if !resp.Relayed {
		t.Error("booking should be relayed")
	}
	sent := rr.post("/booking")
	if sent["id"] != resp.Booking.ID || sent["status"] != "pending" || sent["customerName"] != "Aminata Kamara" {
		t.Errorf("relay payload: got %v", sent)
	}
	if len(g.book.List()) != 1 {
		t.Fatalf("book should hold 1 booking, got %d", len(g.book.List()))
	}

	// The same slot is now taken.
	if rec := g.do(t, http.MethodPost, "/api/bookings", validBooking()); rec.Code != http.StatusConflict {
		t.Errorf("taken slot: expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestBooking_ReportsInvalidFields(t *testing.T) {
	g := newGateway(t, nil)

	bk := validBooking()
	bk.PhoneNumber = "123"
	bk.VehicleYear = "1850"
	bk.PreferredDate = "2026-03-01"
	rec := g.do(t, http.MethodPost, "/api/bookings", bk)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Fields map[string]string `json:"fields"`
	}
	decode(t, rec, &resp)
	for _, f := range []string{"phoneNumber", "vehicleYear", "preferredDate"} {
		if resp.Fields[f] == "" {
			t.Errorf("expected a problem for %s, got %v", f, resp.Fields)
		}
	}
	if len(g.book.List()) != 0 {
		t.Error("invalid booking must not be stored")
	}
}

func TestBooking_RelayFailureStillStores(t *testing.T) {
	_, rl := newRelayServer(t, http.StatusInternalServerError)
	g := newGateway(t, rl)

	rec := g.do(t, http.MethodPost, "/api/bookings", validBooking())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp bookingResponse
	decode(t, rec, &resp)
	if resp.Relayed {
		t.Error("failed relay should be reported")
	}
}

func TestReviews(t *testing.T) {
	g := newGateway(t, nil)

	var list struct {
		Reviews []domain.Review `json:"reviews"`
		Average float64         `json:"average"`
	}
	decode(t, g.do(t, http.MethodGet, "/api/reviews", nil), &list)
	if len(list.Reviews) != 3 {
		t.Fatalf("expected 3 seeded reviews, got %d", len(list.Reviews))
	}

	rec := g.do(t, http.MethodPost, "/api/reviews", domain.Review{Name: "Fatmata", Rating: 4, Comment: "Quick and fair."})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	decode(t, g.do(t, http.MethodGet, "/api/reviews", nil), &list)
	if len(list.Reviews) != 4 || list.Reviews[0].Name != "Fatmata" {
		t.Errorf("new review should come first, got %+v", list.Reviews[0])
	}

	if rec := g.do(t, http.MethodPost, "/api/reviews", domain.Review{Name: "X", Rating: 9, Comment: "?"}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad rating: expected 400, got %d", rec.Code)
	}

	var top struct {
		Reviews []domain.Review `json:"reviews"`
	}
	decode(t, g.do(t, http.MethodGet, "/api/reviews/top?n=1", nil), &top)
	if len(top.Reviews) != 1 || top.Reviews[0].Rating != 5 {
		t.Errorf("top: got %+v", top.Reviews)
	}
	if rec := g.do(t, http.MethodGet, "/api/reviews/top?n=zero", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad n: expected 400, got %d", rec.Code)
	}
}

func TestContact(t *testing.T) {
	rr, rl := newRelayServer(t, http.StatusOK)
	g := newGateway(t, rl)

	msg := map[string]string{"name": "Ibrahim", "email": "ibrahim@example.com", "message": "Do you fix AC?"}
	rec := g.do(t, http.MethodPost, "/api/contact", msg)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rr.post("/contact"); got["message"] != "Do you fix AC?" {
		t.Errorf("relay payload: got %v", got)
	}

	msg["email"] = "not-an-email"
	if rec := g.do(t, http.MethodPost, "/api/contact", msg); rec.Code != http.StatusBadRequest {
		t.Errorf("bad email: expected 400, got %d", rec.Code)
	}
}

func TestContact_RelayFailure(t *testing.T) {
	_, rl := newRelayServer(t, http.StatusBadGateway)
	g := newGateway(t, rl)

	rec := g.do(t, http.MethodPost, "/api/contact", map[string]string{"name": "A", "email": "a@b.co", "message": "hi"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), relay.ErrSubmission.Error()) {
		t.Errorf("body should carry the submission error: %s", rec.Body.String())
	}
}

func TestStatsAndMetrics(t *testing.T) {
	g := newGateway(t, nil)
	g.do(t, http.MethodPost, "/api/chat", map[string]string{"chatId": "v3", "message": "hello"})

	var stats struct {
		Sessions int          `json:"sessions"`
		Memory   memory.Stats `json:"memory"`
	}
	decode(t, g.do(t, http.MethodGet, "/api/stats", nil), &stats)
	if stats.Sessions != 1 || stats.Memory.TotalCount != 1 {
		t.Errorf("stats: got %+v", stats)
	}

	rec := g.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "coolcar_replies_total") {
		t.Errorf("metrics: got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	g := newGateway(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://coolcarauto.example")
	rec := httptest.NewRecorder()
	g.web.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight: expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://coolcarauto.example" {
		t.Errorf("allow origin: got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	rec = httptest.NewRecorder()
	g.web.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unknown origin should get no CORS header, got %q", got)
	}
}

func TestWebSocket_ChatThroughBus(t *testing.T) {
	g := newGateway(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.assistant.Run(ctx)

	srv := httptest.NewServer(g.web.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?chatId=widget-1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	read := func() WSMessage {
		t.Helper()
		var m WSMessage
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("read: %v", err)
		}
		return m
	}

	if m := read(); m.Type != "status" || m.ChatID != "widget-1" {
		t.Errorf("first frame: got %+v", m)
	}
	if m := read(); m.Type != "greeting" || m.Content == "" {
		t.Errorf("second frame: got %+v", m)
	}

	if err := conn.WriteJSON(WSMessage{Type: "message", Content: "my brakes are grinding"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	m := read()
	if m.Type != "message" || m.Content == "" {
		t.Fatalf("reply frame: got %+v", m)
	}
	if m.Reply == nil || m.Reply.Urgency != domain.UrgencyHigh {
		t.Errorf("reply meta: got %+v", m.Reply)
	}

	if _, err := g.assistant.Insights(wsChannel, "widget-1"); err != nil {
		t.Errorf("widget chat should have a session: %v", err)
	}
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	g := newGateway(t, nil)
	srv := httptest.NewServer(g.web.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	if err == nil {
		t.Fatal("dial from a foreign origin should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %v", resp)
	}
}
