// SPDX-FileCopyrightText: 2021 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package remotetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/xmidt-org/ladon/model"
)

// Operation names a kind of request the fake store serves.
type Operation string

// Operations that can be counted or made to fail.
const (
	Discover Operation = "discover"
	Fetch    Operation = "fetch"
	Put      Operation = "put"
)

const (
	recTypeVar   = "recType"
	clusterIDVar = "clusterID"
)

type objs struct {
	Objs []model.Cluster `json:"objs"`
}

// Store is an in-memory stand-in for the remote device store. Clusters are
// kept in insertion order, which is the order discovery reports them in.
type Store struct {
	lock     sync.Mutex
	order    []string
	clusters map[string]model.Cluster
	failures map[Operation]int
	broken   map[string]int
	token    string
	latency  time.Duration

	calls map[Operation]*int64
}

// NewStore returns a store seeded with the given clusters.
func NewStore(clusters ...model.Cluster) *Store {
	s := &Store{
		clusters: make(map[string]model.Cluster, len(clusters)),
		failures: make(map[Operation]int),
		broken:   make(map[string]int),
		calls: map[Operation]*int64{
			Discover: new(int64),
			Fetch:    new(int64),
			Put:      new(int64),
		},
	}
	for _, c := range clusters {
		s.Seed(c)
	}
	return s
}

// Seed adds or replaces a cluster without counting as a write.
func (s *Store) Seed(c model.Cluster) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.put(c.Clone())
}

func (s *Store) put(c model.Cluster) bool {
	_, exists := s.clusters[c.ID]
	if !exists {
		s.order = append(s.order, c.ID)
	}
	s.clusters[c.ID] = c
	return exists
}

// Cluster returns a copy of the stored cluster.
func (s *Store) Cluster(id string) (model.Cluster, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	c, ok := s.clusters[id]
	if !ok {
		return model.Cluster{}, false
	}
	return c.Clone(), true
}

// Fail makes every following request of the operation answer with code.
// A zero code clears the failure.
func (s *Store) Fail(op Operation, code int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if code == 0 {
		delete(s.failures, op)
		return
	}
	s.failures[op] = code
}

// FailCluster makes fetches and writes of one cluster answer with code.
// A zero code clears the failure.
func (s *Store) FailCluster(id string, code int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if code == 0 {
		delete(s.broken, id)
		return
	}
	s.broken[id] = code
}

// RequireToken makes the store reject requests without "Bearer <token>".
func (s *Store) RequireToken(token string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.token = token
}

// SetLatency delays every response by d.
func (s *Store) SetLatency(d time.Duration) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.latency = d
}

// Calls returns how many requests of the operation were received.
func (s *Store) Calls(op Operation) int {
	return int(atomic.LoadInt64(s.calls[op]))
}

// ResetCalls zeroes all the call counters.
func (s *Store) ResetCalls() {
	for _, c := range s.calls {
		atomic.StoreInt64(c, 0)
	}
}

// Handler returns the store's HTTP routes.
func (s *Store) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/device/*", s.serveDiscover).Methods(http.MethodGet)
	r.HandleFunc("/device/{recType}/{clusterID}", s.serveFetch).Methods(http.MethodGet)
	r.HandleFunc("/device/{recType}/{clusterID}", s.servePut).Methods(http.MethodPut)
	return r
}

// Server starts an httptest server for the store that is closed when tb ends.
func (s *Store) Server(tb testing.TB) *httptest.Server {
	server := httptest.NewServer(s.Handler())
	tb.Cleanup(server.Close)
	return server
}

// begin counts the call and reports whether it should be answered normally.
func (s *Store) begin(op Operation, rw http.ResponseWriter, r *http.Request) bool {
	atomic.AddInt64(s.calls[op], 1)

	s.lock.Lock()
	code, failing := s.failures[op]
	if !failing && op != Discover {
		code, failing = s.broken[mux.Vars(r)[clusterIDVar]]
	}
	token := s.token
	latency := s.latency
	s.lock.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-r.Context().Done():
			return false
		}
	}

	if len(token) > 0 && r.Header.Get("Authorization") != "Bearer "+token {
		rw.Header().Set(model.XmidtErrorHeaderKey, "invalid token")
		rw.WriteHeader(http.StatusUnauthorized)
		return false
	}
	if failing {
		rw.Header().Set(model.XmidtErrorHeaderKey, "injected failure")
		rw.WriteHeader(code)
		return false
	}
	return true
}

func (s *Store) serveDiscover(rw http.ResponseWriter, r *http.Request) {
	if !s.begin(Discover, rw, r) {
		return
	}
	if r.URL.Query().Get("discover") != "true" {
		rw.Header().Set(model.XmidtErrorHeaderKey, "wildcard reads require discover=true")
		rw.WriteHeader(http.StatusBadRequest)
		return
	}

	s.lock.Lock()
	out := objs{Objs: make([]model.Cluster, 0, len(s.order))}
	for _, id := range s.order {
		out.Objs = append(out.Objs, s.clusters[id].Clone())
	}
	s.lock.Unlock()

	writeJSON(rw, http.StatusOK, out)
}

func (s *Store) serveFetch(rw http.ResponseWriter, r *http.Request) {
	if !s.begin(Fetch, rw, r) {
		return
	}
	vars := mux.Vars(r)

	out := objs{Objs: []model.Cluster{}}
	s.lock.Lock()
	c, ok := s.clusters[vars[clusterIDVar]]
	if ok && string(c.Category) == vars[recTypeVar] {
		out.Objs = append(out.Objs, c.Clone())
	}
	s.lock.Unlock()

	writeJSON(rw, http.StatusOK, out)
}

func (s *Store) servePut(rw http.ResponseWriter, r *http.Request) {
	if !s.begin(Put, rw, r) {
		return
	}
	vars := mux.Vars(r)

	var c model.Cluster
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		rw.Header().Set(model.XmidtErrorHeaderKey, err.Error())
		rw.WriteHeader(http.StatusBadRequest)
		return
	}
	c.ID = vars[clusterIDVar]
	c.Category = model.Category(vars[recTypeVar])

	s.lock.Lock()
	existed := s.put(c)
	s.lock.Unlock()

	code := http.StatusCreated
	if existed {
		code = http.StatusOK
	}
	writeJSON(rw, code, objs{Objs: []model.Cluster{c}})
}

func writeJSON(rw http.ResponseWriter, code int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	rw.Write(data) // nolint:errcheck
}
