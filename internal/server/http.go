package server

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradedash/internal/assets"
	"tradedash/internal/config"
	"tradedash/internal/depth"
	"tradedash/internal/instrumentation"
	"tradedash/internal/market"
	"tradedash/internal/orderentry"
	"tradedash/internal/positions"
	"tradedash/internal/state"
)

// StaticFiles are the web directory files fingerprinted at startup.
var StaticFiles = []string{"app.js", "styles.css"}

type HTTPServer struct {
	cfg      config.Config
	st       *state.State
	assets   *assets.Manager
	gatherer prometheus.Gatherer
	hub      *hub
	log      *slog.Logger
	router   chi.Router
}

// NewHTTPServer wires the routes and starts the websocket hub. metrics and gatherer may be
// nil; /metrics is only mounted when cfg.MetricsEnabled and a gatherer is given.
func NewHTTPServer(cfg config.Config, st *state.State, am *assets.Manager, metrics *instrumentation.Metrics, gatherer prometheus.Gatherer, logger *slog.Logger) *HTTPServer {
	var onCount func(int)
	if metrics != nil {
		onCount = metrics.SetWSClients
	}
	s := &HTTPServer{
		cfg:      cfg,
		st:       st,
		assets:   am,
		gatherer: gatherer,
		hub:      newHub(logger.With("component", "ws"), onCount),
		log:      logger.With("component", "http"),
		router:   chi.NewRouter(),
	}
	s.routes()
	go s.hub.run()
	return s
}

func (s *HTTPServer) Router() http.Handler { return s.router }

// Close disconnects every websocket client and stops the hub.
func (s *HTTPServer) Close() { s.hub.close() }

// --------- WS broadcasts ----------

func (s *HTTPServer) statusPayload(streams map[string]bool) map[string]any {
	all := true
	for _, up := range streams {
		all = all && up
	}
	return map[string]any{
		"connected": all,
		"streams":   streams,
		"symbol":    s.st.Symbol(),
	}
}

func tickerPayload(t market.Ticker) map[string]any {
	return map[string]any{"ticker": t, "direction": t.Direction()}
}

func tradePayload(t market.Trade, history []market.Trade) map[string]any {
	return map[string]any{"trade": t, "side": t.Side(), "trades": history}
}

func (s *HTTPServer) BroadcastStatus(streams map[string]bool) {
	s.hub.publish(marshalWS("status", s.statusPayload(streams)))
}

func (s *HTTPServer) BroadcastTicker(t market.Ticker) {
	s.hub.publish(marshalWS("ticker", tickerPayload(t)))
}

func (s *HTTPServer) BroadcastBook(b depth.Book) {
	s.hub.publish(marshalWS("book", b))
}

func (s *HTTPServer) BroadcastTrade(t market.Trade, history []market.Trade) {
	s.hub.publish(marshalWS("trade", tradePayload(t, history)))
}

func (s *HTTPServer) BroadcastError(msg string) {
	s.hub.publish(marshalWS("error", map[string]string{"message": msg}))
}

// initialMessages is the current state as the messages a new websocket client would have
// seen so far.
func (s *HTTPServer) initialMessages() [][]byte {
	msgs := [][]byte{marshalWS("status", s.statusPayload(s.st.Streams()))}
	if t, ok := s.st.Ticker(); ok {
		msgs = append(msgs, marshalWS("ticker", tickerPayload(t)))
	}
	msgs = append(msgs, marshalWS("book", s.st.Book()))
	if trades := s.st.Trades(); len(trades) > 0 {
		msgs = append(msgs, marshalWS("trade", tradePayload(trades[0], trades)))
	}
	return msgs
}

// --------- Routes ----------

func (s *HTTPServer) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		s.hub.serveWS(w, r, s.initialMessages())
	})

	r.Group(func(r chi.Router) {
		r.Use(requestLogger(s.log))

		// SPA
		r.Get("/", s.serveIndex)
		r.Get("/index.html", s.serveIndex)
		r.Get("/static/{name}", s.serveStatic)

		// API
		r.Route("/api", func(r chi.Router) {
			r.Get("/health", s.apiHealth)
			r.Get("/config", s.apiConfig)
			r.Get("/ticker", s.apiTicker)
			r.Get("/book", s.apiBook)
			r.Get("/trades", s.apiTrades)
			r.Get("/positions", s.apiPositions)
			r.Get("/order", s.apiOrder)
			r.Post("/select", s.apiSelect)
			r.Post("/order/price", s.apiOrderPrice)
			r.Post("/order/amount", s.apiOrderAmount)
			r.Post("/order/leverage", s.apiOrderLeverage)
			r.Post("/order/slider", s.apiOrderSlider)
			r.Post("/order/type", s.apiOrderType)
		})
	})

	if s.cfg.MetricsEnabled && s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("took", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func (s *HTTPServer) serveIndex(w http.ResponseWriter, r *http.Request) {
	tpl, err := template.ParseFiles(filepath.Join(s.cfg.WebDir, "index.html"))
	if err != nil {
		http.Error(w, "index missing", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := map[string]any{
		"Symbol": s.st.Symbol(),
		"Assets": s.assets.URLs(),
	}
	if err := tpl.Execute(w, data); err != nil {
		s.log.Error("render index", slog.String("err", err.Error()))
	}
}

func (s *HTTPServer) serveStatic(w http.ResponseWriter, r *http.Request) {
	a, ok := s.assets.Get(chi.URLParam(r, "name"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.URL.Query().Get("v") == a.Hash {
		// strong caching (1 year) + immutable
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	} else {
		w.Header().Set("Cache-Control", "no-cache")
	}
	http.ServeFile(w, r, a.Path)
}

func (s *HTTPServer) apiHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":              true,
		"connected":       s.st.Connected(),
		"streams":         s.st.Streams(),
		"rejectedUpdates": s.st.Rejected(),
	})
}

func (s *HTTPServer) apiConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"symbol":           s.st.Symbol(),
		"source":           s.cfg.Source,
		"depthLevels":      s.cfg.DepthLevels,
		"displayLevels":    s.cfg.DisplayLevels,
		"tradeHistorySize": s.cfg.TradeHistorySize,
		"availableFunds":   s.cfg.AvailableFunds,
		"defaultLeverage":  s.cfg.DefaultLeverage,
		"leverages":        orderentry.Leverages,
		"orderTypes":       orderentry.OrderTypes,
		"marginModes":      []orderentry.MarginMode{orderentry.Cross, orderentry.Isolated},
		"metricsEnabled":   s.cfg.MetricsEnabled,
	})
}

func (s *HTTPServer) apiTicker(w http.ResponseWriter, r *http.Request) {
	t, ok := s.st.Ticker()
	if !ok {
		http.Error(w, "no ticker yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, tickerPayload(t))
}

func (s *HTTPServer) apiBook(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.st.Book())
}

func (s *HTTPServer) apiTrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"trades": s.st.Trades()})
}

type positionRow struct {
	positions.Position
	PNLClass string `json:"pnlClass"`
}

func (s *HTTPServer) apiPositions(w http.ResponseWriter, r *http.Request) {
	list := positions.List()
	rows := make([]positionRow, 0, len(list))
	for _, p := range list {
		rows = append(rows, positionRow{Position: p, PNLClass: p.PNLClass()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tabs": positions.Tabs(), "positions": rows})
}

type orderResponse struct {
	orderentry.View
	SelectedPrice *float64 `json:"selectedPrice"`
}

func (s *HTTPServer) orderView(f orderentry.Form) orderResponse {
	resp := orderResponse{View: f.View()}
	if p, ok := s.st.SelectedPrice(); ok {
		resp.SelectedPrice = &p
	}
	return resp
}

func (s *HTTPServer) apiOrder(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orderView(s.st.Form()))
}

// POST /api/select { "price": 95000 } or { "price": null }
func (s *HTTPServer) apiSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price *float64 `json:"price"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Price == nil {
		s.st.ClearSelection()
		writeJSON(w, http.StatusOK, s.orderView(s.st.Form()))
		return
	}
	if math.IsNaN(*req.Price) || math.IsInf(*req.Price, 0) || *req.Price <= 0 {
		http.Error(w, "price must be positive", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.orderView(s.st.SelectPrice(*req.Price)))
}

// POST /api/order/price { "price": "200" }; the typed price feeds later slider and amount edits.
func (s *HTTPServer) apiOrderPrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price string `json:"price"`
	}
	if !decode(w, r, &req) {
		return
	}
	f, _ := s.st.UpdateForm(func(f orderentry.Form) (orderentry.Form, error) {
		return f.SetPrice(req.Price), nil
	})
	writeJSON(w, http.StatusOK, s.orderView(f))
}

func (s *HTTPServer) apiOrderAmount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount string `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	f, _ := s.st.UpdateForm(func(f orderentry.Form) (orderentry.Form, error) {
		return f.SetAmount(req.Amount), nil
	})
	writeJSON(w, http.StatusOK, s.orderView(f))
}

func (s *HTTPServer) apiOrderLeverage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Leverage string `json:"leverage"`
	}
	if !decode(w, r, &req) {
		return
	}
	f, err := s.st.UpdateForm(func(f orderentry.Form) (orderentry.Form, error) {
		return f.SetLeverage(req.Leverage)
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.orderView(f))
}

func (s *HTTPServer) apiOrderSlider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Percent float64 `json:"percent"`
	}
	if !decode(w, r, &req) {
		return
	}
	f, _ := s.st.UpdateForm(func(f orderentry.Form) (orderentry.Form, error) {
		return f.SetSlider(req.Percent), nil
	})
	writeJSON(w, http.StatusOK, s.orderView(f))
}

// POST /api/order/type { "orderType": "Market", "marginMode": "Isolated" }; either may be omitted.
func (s *HTTPServer) apiOrderType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderType  string `json:"orderType"`
		MarginMode string `json:"marginMode"`
	}
	if !decode(w, r, &req) {
		return
	}
	f, err := s.st.UpdateForm(func(f orderentry.Form) (orderentry.Form, error) {
		var err error
		if req.OrderType != "" {
			if f, err = f.SetOrderType(orderentry.OrderType(req.OrderType)); err != nil {
				return f, err
			}
		}
		if req.MarginMode != "" {
			if f, err = f.SetMarginMode(orderentry.MarginMode(req.MarginMode)); err != nil {
				return f, err
			}
		}
		return f, nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.orderView(f))
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
