package internal

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/internetbuilder/hive/libraries/blocklog"
	"github.com/internetbuilder/hive/libraries/chain"
	"github.com/internetbuilder/hive/libraries/logger"
	"github.com/internetbuilder/hive/libraries/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

var (
	blockReads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hive_blocklog_reads_total",
		Help: "Blocks served over the HTTP API",
	})
	readErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hive_blocklog_read_errors_total",
		Help: "Failed block reads over the HTTP API",
	})
	headGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hive_blocklog_head_block",
		Help: "Head block number of the served log",
	})
	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hive_blocklog_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	})
)

// ServeConfig configures the read-only HTTP API.
type ServeConfig struct {
	HTTPListen     string
	HTTPSocket     string
	RateLimit      int // requests per second; 0 disables limiting
	RateBurst      int
	StreamEnabled  bool
	StreamInterval time.Duration
}

type apiServer struct {
	log     *blocklog.BlockLog
	limiter *rate.Limiter
	cfg     ServeConfig
}

// Serve runs the read-only HTTP API until shutdown closes. It serves on
// a TCP address and a unix socket; pass "none" to disable either.
func Serve(l *blocklog.BlockLog, cfg ServeConfig, shutdown <-chan struct{}) error {
	api := &apiServer{log: l, cfg: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = cfg.RateLimit
		}
		api.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if cfg.StreamInterval <= 0 {
		cfg.StreamInterval = 500 * time.Millisecond
		api.cfg.StreamInterval = cfg.StreamInterval
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chain/get_info", api.limited(api.handleGetInfo))
	mux.HandleFunc("/v1/chain/get_block", api.limited(api.handleGetBlock))
	mux.HandleFunc("/v1/chain/get_head", api.limited(api.handleGetHead))
	mux.Handle("/metrics", promhttp.Handler())
	if cfg.StreamEnabled {
		mux.HandleFunc("/v1/stream", api.handleStream)
	}

	httpServer := &http.Server{Handler: mux}

	var listeners []net.Listener
	if cfg.HTTPListen != "" && cfg.HTTPListen != "none" {
		listeners = append(listeners, server.SocketListen(cfg.HTTPListen))
	}
	if cfg.HTTPSocket != "" && cfg.HTTPSocket != "none" {
		listeners = append(listeners, server.SocketListen(cfg.HTTPSocket))
	}
	if len(listeners) == 0 {
		return fmt.Errorf("no listen addresses configured")
	}

	errChan := make(chan error, len(listeners))
	for _, ln := range listeners {
		logger.Printf("http", "API listening on %s", ln.Addr())
		go func(ln net.Listener) {
			if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}(ln)
	}

	select {
	case err := <-errChan:
		return err
	case <-shutdown:
	}

	logger.Printf("shutdown", "Stopping HTTP API")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

func (a *apiServer) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.limiter != nil && !a.limiter.Allow() {
			rateLimited.Inc()
			server.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

func (a *apiServer) handleGetInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"block_count": a.log.Count(),
	}
	if head := a.log.Head(); head != nil {
		headGauge.Set(float64(head.BlockNum()))
		info["head_block_num"] = head.BlockNum()
		if sb, ok := head.(*chain.SignedBlock); ok {
			info["head_block_id"] = sb.ID().String()
			info["head_block_time"] = sb.Timestamp
		}
	}
	server.WriteJSON(w, http.StatusOK, info)
}

func (a *apiServer) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	params, err := server.GetRequestParams(r)
	if err != nil {
		server.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	numParam, ok := params["num"]
	if !ok {
		server.WriteError(w, http.StatusBadRequest, "missing parameter: num")
		return
	}
	num, err := parseUint32(numParam)
	if err != nil {
		server.WriteError(w, http.StatusBadRequest, "invalid parameter: num")
		return
	}

	b, _, err := a.log.ReadBlockByNum(num)
	if err != nil {
		readErrors.Inc()
		server.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if b == nil {
		server.WriteError(w, http.StatusNotFound, fmt.Sprintf("block %d not found", num))
		return
	}

	blockReads.Inc()
	server.WriteJSON(w, http.StatusOK, blockToJSON(b))
}

func (a *apiServer) handleGetHead(w http.ResponseWriter, r *http.Request) {
	head := a.log.Head()
	if head == nil {
		server.WriteError(w, http.StatusNotFound, "block log is empty")
		return
	}
	blockReads.Inc()
	headGauge.Set(float64(head.BlockNum()))
	server.WriteJSON(w, http.StatusOK, blockToJSON(head))
}

func blockToJSON(b blocklog.Block) map[string]any {
	out := map[string]any{
		"block_num": b.BlockNum(),
	}
	sb, ok := b.(*chain.SignedBlock)
	if !ok {
		return out
	}

	txs := make([]string, len(sb.Transactions))
	for i, tx := range sb.Transactions {
		txs[i] = hex.EncodeToString(tx)
	}

	out["block_id"] = sb.ID().String()
	out["previous"] = sb.Previous.String()
	out["timestamp"] = sb.Timestamp
	out["witness"] = sb.Witness
	out["transaction_merkle_root"] = hex.EncodeToString(sb.TransactionMerkleRoot[:])
	out["witness_signature"] = hex.EncodeToString(sb.WitnessSignature[:])
	out["transactions"] = txs
	return out
}

func parseUint32(v any) (uint32, error) {
	switch t := v.(type) {
	case string:
		n, err := strconv.ParseUint(t, 10, 32)
		return uint32(n), err
	case fmt.Stringer:
		n, err := strconv.ParseUint(t.String(), 10, 32)
		return uint32(n), err
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
