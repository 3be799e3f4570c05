// Package api is the thin JSON-RPC/WebSocket facade exposed to external
// collaborators (§6): block/transaction/state queries over HTTP, and a
// WebSocket endpoint for change subscriptions.
//
// Grounded on core/virtual_machine.go's embedded HTTP API section
// (package-level rate.Limiter, a router, one POST JSON endpoint, an
// http.Server with fixed Read/Write/Idle timeouts). The teacher's
// gorilla/mux router is swapped for github.com/go-chi/chi/v5 — the
// teacher's other HTTP-facing node types (explorer, dexserver) use chi,
// and carrying two router libraries for one process is redundant (see
// DESIGN.md dropped-deps). gorilla/websocket is added for the WebSocket
// surface, which the teacher's VM API doesn't have at all.
package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/opnet-core/indexer/internal/storage"
	"github.com/opnet-core/indexer/internal/types"
	"github.com/opnet-core/indexer/pkg/errkind"
)

// Config tunes the HTTP surface.
type Config struct {
	Listen            string
	RequestsPerSecond float64
	Burst             int
	MaxPendingLimit   int // default result-page limit, §6 "Max limit ... (defaults: 25, 100)"
	MaxAddresses      int
}

// Server is the external-facing query surface over a StorageEngine.
type Server struct {
	cfg         Config
	store       *storage.StorageEngine
	log         *logrus.Logger
	limiter     *rate.Limiter
	httpSrv     *http.Server
	broadcaster *Broadcaster
}

// New builds a Server bound to store. It does not start listening; call Run.
func New(cfg Config, store *storage.StorageEngine, log *logrus.Logger) *Server {
	if cfg.Listen == "" {
		cfg.Listen = ":9090"
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 200
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 100
	}
	if cfg.MaxPendingLimit <= 0 {
		cfg.MaxPendingLimit = 25
	}
	if cfg.MaxAddresses <= 0 {
		cfg.MaxAddresses = 100
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		cfg:         cfg,
		store:       store,
		log:         log,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		broadcaster: NewBroadcaster(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.rateLimit)

	r.Get("/blocks/latest", s.handleLatestBlock)
	r.Get("/blocks/height/{height}", s.handleBlockByHeight)
	r.Get("/blocks/hash/{hash}", s.handleBlockByHash)
	r.Get("/blocks/checksum/{checksum}", s.handleBlockByChecksum)
	r.Get("/transactions/{hash}", s.handleTransactionByHash)
	r.Get("/pending", s.handlePendingTransactions)
	r.Get("/state/{address}/code", s.handleGetCode)
	r.Get("/ws", s.handleWebSocket)

	s.httpSrv = &http.Server{
		Addr:         cfg.Listen,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	return s
}

// Broadcaster returns the Server's WebSocket fan-out, so a hooks.Plugin
// handler can Publish server-side events to subscribed clients.
func (s *Server) Broadcaster() *Broadcaster { return s.broadcaster }

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, errkind.New(errkind.RateLimited, "api: rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP listener and blocks until ctx is cancelled or the
// server fails. On ctx cancellation it shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.cfg.Listen).Info("api: listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    string(errkind.Of(err)),
		"message": err.Error(),
	})
}

func statusFor(kind errkind.Kind) int {
	switch kind {
	case errkind.NotFound:
		return http.StatusNotFound
	case errkind.InvalidInput:
		return http.StatusBadRequest
	case errkind.AuthRequired:
		return http.StatusUnauthorized
	case errkind.RateLimited, errkind.Backpressure:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleLatestBlock(w http.ResponseWriter, r *http.Request) {
	h, err := s.store.Blocks().GetLatestBlock()
	if err != nil {
		writeError(w, statusFor(errkind.Of(err)), err)
		return
	}
	writeJSON(w, h)
}

func (s *Server) handleBlockByHeight(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseUint(chi.URLParam(r, "height"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errkind.New(errkind.InvalidInput, "api: malformed height"))
		return
	}
	h, err := s.store.Blocks().GetBlockHeader(height)
	if err != nil {
		writeError(w, statusFor(errkind.Of(err)), err)
		return
	}
	writeJSON(w, h)
}

func (s *Server) handleBlockByHash(w http.ResponseWriter, r *http.Request) {
	hash, ok := types.HashFromHex(chi.URLParam(r, "hash"))
	if !ok {
		writeError(w, http.StatusBadRequest, errkind.New(errkind.InvalidInput, "api: rejects non-64-hex hash"))
		return
	}
	h, err := s.store.Blocks().GetBlockByHash(hash)
	if err != nil {
		writeError(w, statusFor(errkind.Of(err)), err)
		return
	}
	writeJSON(w, h)
}

// handleBlockByChecksum lowercases the input and strips a leading 0x before
// parsing, and rejects anything that isn't 64 hex characters (§6).
func (s *Server) handleBlockByChecksum(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(strings.ToLower(chi.URLParam(r, "checksum")), "0x")
	checksum, ok := types.HashFromHex(raw)
	if !ok {
		writeError(w, http.StatusBadRequest, errkind.New(errkind.InvalidInput, "api: rejects non-64-hex checksum"))
		return
	}
	h, err := s.store.Blocks().GetBlockByChecksum(checksum)
	if err != nil {
		writeError(w, statusFor(errkind.Of(err)), err)
		return
	}
	includeTx := r.URL.Query().Get("includeTransactions") == "true"
	if !includeTx {
		writeJSON(w, h)
		return
	}
	writeJSON(w, struct {
		*types.BlockHeader
		Transactions []*types.Transaction `json:"transactions"`
	}{BlockHeader: h, Transactions: s.store.Transactions().GetByBlockHeight(h.Height)})
}

func (s *Server) handleTransactionByHash(w http.ResponseWriter, r *http.Request) {
	hash, ok := types.HashFromHex(chi.URLParam(r, "hash"))
	if !ok {
		writeError(w, http.StatusBadRequest, errkind.New(errkind.InvalidInput, "api: rejects non-64-hex hash"))
		return
	}
	tx, err := s.store.Transactions().GetByHash(hash)
	if err != nil {
		writeError(w, statusFor(errkind.Of(err)), err)
		return
	}
	writeJSON(w, tx)
}

// handlePendingTransactions looks up pending transactions for the
// comma-separated address list exactly as given: a single address is not
// expanded to its other address encodings. It enforces only the configured
// max-addresses/max-limit bounds (§6).
func (s *Server) handlePendingTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var addrs []types.Address
	if raw := q.Get("addresses"); raw != "" {
		for _, a := range strings.Split(raw, ",") {
			addrs = append(addrs, types.Address(a))
		}
	}
	if len(addrs) > s.cfg.MaxAddresses {
		writeError(w, http.StatusBadRequest, errkind.New(errkind.InvalidInput, "api: too many addresses"))
		return
	}
	limit := s.cfg.MaxPendingLimit
	if raw := q.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= s.cfg.MaxPendingLimit {
			limit = parsed
		}
	}
	txs := s.store.Transactions().GetPendingForAddresses(addrs)
	if len(txs) > limit {
		txs = txs[:limit]
	}
	writeJSON(w, txs)
}

func (s *Server) handleGetCode(w http.ResponseWriter, r *http.Request) {
	addr := types.ContractAddress(chi.URLParam(r, "address"))
	height, ok := s.parseAtHeight(r)
	if !ok {
		height, _ = s.store.Blocks().MaxBlockHeight()
	}
	c, err := s.store.Contracts().Get(addr, height)
	if err != nil {
		writeError(w, statusFor(errkind.Of(err)), err)
		return
	}
	if r.URL.Query().Get("onlyBytecode") == "true" {
		writeJSON(w, map[string]string{"bytecode": hex.EncodeToString(c.Bytecode)})
		return
	}
	writeJSON(w, c)
}

func (s *Server) parseAtHeight(r *http.Request) (uint64, bool) {
	raw := r.URL.Query().Get("at_height")
	if raw == "" {
		return 0, false
	}
	h, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return h, true
}
