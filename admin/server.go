package admin

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/chainflux/mldht/bloom"
	"github.com/chainflux/mldht/dht"
	"github.com/chainflux/mldht/store"
)

// Server is the admin HTTP surface's state: just enough to read routing
// table, peer-store and peer-estimate statistics, nothing that can
// mutate the DHT.
type Server struct {
	table  *dht.RoutingTable
	store  store.Store
	filter *bloom.Filter
	router chi.Router
}

// New builds the admin router. filter may be nil if peer-count
// estimation is disabled. st may be nil if torrent-count reporting is
// not wanted, though the running node always has one.
func New(table *dht.RoutingTable, st store.Store, filter *bloom.Filter) *Server {
	s := &Server{table: table, store: st, filter: filter}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Get("/stats", s.handleStats)
	r.Get("/buckets", s.handleBuckets)
	s.router = r

	return s
}

// ServeHTTP makes Server itself an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type statsResponse struct {
	Buckets          int     `json:"buckets"`
	Nodes            int     `json:"nodes"`
	Torrents         int     `json:"torrents,omitempty"`
	EstimatedPeerIPs float64 `json:"estimated_peer_ips,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		Buckets: s.table.BucketCount(),
		Nodes:   s.table.NodeCount(),
	}
	if s.store != nil {
		n, err := s.store.Count()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "handleStats",
				"error":    err,
			}).Warn("torrent count unavailable")
		} else {
			resp.Torrents = n
		}
	}
	if s.filter != nil {
		resp.EstimatedPeerIPs = s.filter.Estimate()
	}
	writeJSON(w, resp)
}

func (s *Server) handleBuckets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.table.Stats())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
