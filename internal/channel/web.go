package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"coolcar/internal/assistant"
	"coolcar/internal/booking"
	"coolcar/internal/domain"
	"coolcar/internal/memory"
	"coolcar/internal/metrics"
	"coolcar/internal/relay"
	"coolcar/internal/review"
)

const (
	maxBodySize    = 1 << 20 // 1MB
	requestTimeout = 60 * time.Second
	defaultTopN    = 3
)

// Web is the website gateway: the REST API behind the site's forms and the
// chat widget, plus the WebSocket widget channel. REST chat replies are
// produced synchronously; WebSocket messages go through the bus.
type Web struct {
	host           string
	port           int
	allowedOrigins []string
	metricsPath    string

	assistant *assistant.Assistant
	book      *booking.Book
	reviews   *review.Store
	relay     *relay.Relay
	memory    *memory.Memory
	now       func() time.Time

	bus      domain.MessageBus
	upgrader websocket.Upgrader
	server   *http.Server
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[string]*wsClient
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // "*" allows any origin
	MetricsPath    string   // "" disables the metrics endpoint
	Assistant      *assistant.Assistant
	Book           *booking.Book
	Reviews        *review.Store
	Relay          *relay.Relay
	Memory         *memory.Memory
	Logger         *slog.Logger
}

func NewWeb(cfg WebConfig) *Web {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	w := &Web{
		host:           cfg.Host,
		port:           cfg.Port,
		allowedOrigins: cfg.AllowedOrigins,
		metricsPath:    cfg.MetricsPath,
		assistant:      cfg.Assistant,
		book:           cfg.Book,
		reviews:        cfg.Reviews,
		relay:          cfg.Relay,
		memory:         cfg.Memory,
		now:            time.Now,
		logger:         cfg.Logger,
		clients:        make(map[string]*wsClient),
	}
	w.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     w.checkOrigin,
	}
	return w
}

func (w *Web) Name() string { return "web" }

// SetBus attaches the bus and routes WebSocket replies back to their chat.
func (w *Web) SetBus(bus domain.MessageBus) {
	w.bus = bus
	bus.OnOutbound(wsChannel, func(msg domain.OutboundMessage) {
		w.broadcastToChat(msg.ChatID, WSMessage{
			Type:    "message",
			Content: msg.Content,
			ChatID:  msg.ChatID,
			Reply:   msg.Reply,
		})
	})
}

// Handler returns the gateway's routes wrapped in CORS handling.
func (w *Web) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", w.handleHealth)
	mux.HandleFunc("GET /api/greeting", w.handleGreeting)
	mux.HandleFunc("POST /api/chat", w.handleChat)
	mux.HandleFunc("GET /api/chat/{id}/insights", w.handleInsights)
	mux.HandleFunc("GET /api/slots", w.handleSlots)
	mux.HandleFunc("POST /api/bookings", w.handleBooking)
	mux.HandleFunc("GET /api/reviews", w.handleReviews)
	mux.HandleFunc("GET /api/reviews/top", w.handleTopReviews)
	mux.HandleFunc("POST /api/reviews", w.handleAddReview)
	mux.HandleFunc("POST /api/contact", w.handleContact)
	mux.HandleFunc("GET /api/stats", w.handleStats)
	mux.HandleFunc("GET /ws", w.handleUpgrade)
	if w.metricsPath != "" {
		mux.Handle("GET "+w.metricsPath, metrics.Handler())
	}
	return w.cors(mux)
}

// Start serves the gateway until ctx is cancelled.
func (w *Web) Start(ctx context.Context, bus domain.MessageBus) error {
	w.SetBus(bus)

	addr := fmt.Sprintf("%s:%d", w.host, w.port)
	w.server = &http.Server{
		Addr:              addr,
		Handler:           w.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	w.logger.Info("web gateway started", "addr", "http://"+addr)

	go func() {
		<-ctx.Done()
		w.closeAllClients()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = w.server.Shutdown(shutdownCtx)
	}()

	if err := w.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (w *Web) Stop() error {
	if w.server != nil {
		return w.server.Close()
	}
	return nil
}

func (w *Web) Send(ctx context.Context, chatID string, content string) error {
	w.broadcastToChat(chatID, WSMessage{Type: "message", Content: content, ChatID: chatID})
	return nil
}

// cors answers preflight requests and tags responses for allowed origins.
func (w *Web) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && w.originAllowed(origin) {
			rw.Header().Set("Access-Control-Allow-Origin", origin)
			rw.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			rw.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			rw.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			rw.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(rw, r)
	})
}

func (w *Web) originAllowed(origin string) bool {
	return slices.Contains(w.allowedOrigins, "*") || slices.Contains(w.allowedOrigins, origin)
}

// checkOrigin admits same-host pages and configured origins to /ws.
func (w *Web) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || w.originAllowed(origin) {
		return true
	}
	return strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://") == r.Host
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, msg string) {
	writeJSON(rw, status, map[string]string{"error": msg})
}

// decodeBody reads a size-limited JSON body into v.
func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func (w *Web) handleHealth(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   w.now().UTC().Format(time.RFC3339),
	})
}

func (w *Web) handleGreeting(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]string{"greeting": w.assistant.Greeting()})
}

type chatRequest struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

type chatResponse struct {
	ChatID string            `json:"chatId"`
	Reply  string            `json:"reply"`
	Meta   *domain.ReplyMeta `json:"meta"`
}

func (w *Web) handleChat(rw http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.ChatID == "" || req.Message == "" {
		writeError(rw, http.StatusBadRequest, "chatId and message are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	reply, err := w.assistant.ProcessDirect(ctx, w.Name(), req.ChatID, req.Message)
	switch {
	case errors.Is(err, domain.ErrCancelled):
		writeError(rw, http.StatusGatewayTimeout, "request cancelled")
		return
	case err != nil:
		w.logger.Error("chat failed", "chat", req.ChatID, "err", err)
		writeError(rw, http.StatusInternalServerError, "Sorry, something went wrong on our side. Please try again.")
		return
	}
	writeJSON(rw, http.StatusOK, chatResponse{ChatID: req.ChatID, Reply: reply.Text, Meta: reply.Meta()})
}

func (w *Web) handleInsights(rw http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ins, err := w.assistant.Insights(w.Name(), id)
	if errors.Is(err, domain.ErrNotFound) {
		// Widget chats are keyed under the WebSocket channel.
		ins, err = w.assistant.Insights(wsChannel, id)
	}
	if err != nil {
		writeError(rw, http.StatusNotFound, "unknown chat")
		return
	}
	writeJSON(rw, http.StatusOK, ins)
}

func (w *Web) handleSlots(rw http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = w.now().Format(booking.DateLayout)
	}
	parsed, err := booking.ParseDate(date, w.now())
	if err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{
		"date":  parsed,
		"slots": w.book.AvailableSlots(parsed),
	})
}

type bookingResponse struct {
	Booking domain.Booking `json:"booking"`
	Relayed bool           `json:"relayed"`
}

// handleBooking takes the website's booking form in one request. Every
// field is checked before anything is stored.
func (w *Web) handleBooking(rw http.ResponseWriter, r *http.Request) {
	var details domain.BookingDetails
	if err := decodeBody(r, &details); err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}

	now := w.now()
	if d, err := booking.ParseDate(details.PreferredDate, now); err == nil {
		details.PreferredDate = d
	}
	if t, err := booking.ParseTime(details.PreferredTime); err == nil {
		details.PreferredTime = t
	}

	problems := make(map[string]string)
	for _, f := range append(append([]domain.BookingField{}, domain.RequiredBookingFields...), domain.FieldEmail) {
		if err := booking.Validate(f, details.Get(f), now); err != nil {
			problems[string(f)] = err.Error()
		}
	}
	if _, ok := problems[string(domain.FieldPreferredDate)]; !ok && details.PreferredDate < now.Format(booking.DateLayout) {
		problems[string(domain.FieldPreferredDate)] = "Please choose a date from today onwards."
	}
	if len(problems) > 0 {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"error": "invalid booking", "fields": problems})
		return
	}
	if !slotFree(w.book.AvailableSlots(details.PreferredDate), details.PreferredTime) {
		writeError(rw, http.StatusConflict, "That time is not available. Please pick another slot.")
		return
	}

	draft := booking.NewDraft(w.book)
	for f, v := range details.Fields() {
		if err := draft.UpdateField(domain.BookingField(f), v); err != nil {
			writeError(rw, http.StatusBadRequest, err.Error())
			return
		}
	}
	bk, err := draft.Submit(r.Context())
	if errors.Is(err, booking.ErrSlotTaken) {
		writeError(rw, http.StatusConflict, "That time is not available. Please pick another slot.")
		return
	}
	if err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	w.logger.Info("booking received", "id", bk.ID, "service", bk.ServiceType, "date", bk.PreferredDate)

	resp := bookingResponse{Booking: bk}
	if w.relay.Configured(relay.FormBooking) {
		fields := bk.Fields()
		fields["id"] = bk.ID
		fields["status"] = string(bk.Status)
		fields["createdAt"] = bk.CreatedAt.Format(time.RFC3339)
		resp.Relayed = w.relay.Submit(r.Context(), relay.FormBooking, fields) == nil
	}
	writeJSON(rw, http.StatusCreated, resp)
}

func slotFree(slots []domain.TimeSlot, t string) bool {
	for _, s := range slots {
		if s.Time == t {
			return s.IsAvailable
		}
	}
	return false
}

func (w *Web) handleReviews(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{
		"reviews": w.reviews.List(),
		"average": w.reviews.Average(),
	})
}

func (w *Web) handleTopReviews(rw http.ResponseWriter, r *http.Request) {
	n := defaultTopN
	if s := r.URL.Query().Get("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			writeError(rw, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = v
	}
	writeJSON(rw, http.StatusOK, map[string]any{"reviews": w.reviews.TopRated(n)})
}

func (w *Web) handleAddReview(rw http.ResponseWriter, r *http.Request) {
	var rv domain.Review
	if err := decodeBody(r, &rv); err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := w.reviews.Add(r.Context(), rv)
	if err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(rw, http.StatusCreated, saved)
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

func (w *Web) handleContact(rw http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Message = strings.TrimSpace(req.Message)
	if req.Name == "" || req.Email == "" || req.Message == "" {
		writeError(rw, http.StatusBadRequest, "name, email and message are required")
		return
	}
	if err := booking.Validate(domain.FieldEmail, req.Email, w.now()); err != nil {
		writeError(rw, http.StatusBadRequest, err.Error())
		return
	}

	fields := map[string]string{"name": req.Name, "email": req.Email, "message": req.Message}
	if req.Phone != "" {
		fields["phone"] = req.Phone
	}
	if req.Subject != "" {
		fields["subject"] = req.Subject
	}
	if !w.relay.Configured(relay.FormContact) {
		writeError(rw, http.StatusServiceUnavailable, relay.ErrSubmission.Error())
		return
	}
	if err := w.relay.Submit(r.Context(), relay.FormContact, fields); err != nil {
		writeError(rw, http.StatusBadGateway, relay.ErrSubmission.Error())
		return
	}
	writeJSON(rw, http.StatusOK, map[string]string{"status": "sent"})
}

func (w *Web) handleStats(rw http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"sessions": w.assistant.Sessions().Len(),
		"bookings": w.book.Counts(),
		"reviews": map[string]any{
			"count":   len(w.reviews.List()),
			"average": w.reviews.Average(),
		},
	}
	if w.memory != nil {
		stats["memory"] = w.memory.Stats()
	}
	writeJSON(rw, http.StatusOK, stats)
}
