package httpsource

/*
   Copyright 2018 Bruno Moura <brunotm@gmail.com>

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package httpsource adapts the teacher's HTTP ingest processor
// (processor/source/http) into a flowmesh source Block: an internal
// httpserver.Server accepts POSTed request bodies and queues them as
// out-of-band messages, which work() drains onto the block's output port
// as mVRL-style framed byte payloads, one message at a time.
import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/brunotm/flowmesh"
	"github.com/brunotm/flowmesh/internal/httpserver"
	"github.com/brunotm/flowmesh/mvrl"
)

// ByteDType is the element type this source's "out" port carries.
var ByteDType = flowmesh.DType{Name: "byte", Size: 1}

// Config configures a Block's embedded HTTP listener.
type Config struct {
	Addr string
	Path string // path accepting POST bodies, default "/ingest"
}

// Source wraps the Block plus its embedded HTTP server, so callers can
// Start/Close the listener alongside committing the owning Topology.
type Source struct {
	*flowmesh.Block
	server *httpserver.Server
}

// New returns a Block with a single "out" output port, backed by an
// internal/httpserver.Server listening on cfg.Addr. Every POST body
// received on cfg.Path is queued and drained one-per-work()-admission onto
// "out" as an mVRL message frame, preserving the teacher's one-request-one-
// record ingestion model.
func New(id flowmesh.BlockID, cfg Config) *Source {
	if cfg.Path == "" {
		cfg.Path = "/ingest"
	}

	b := flowmesh.NewBlock(id, "blocks/httpsource")
	out := b.AddOutput("out", ByteDType)

	var mu sync.Mutex
	var queue [][]byte
	var seq uint64

	srv := httpserver.New(httpserver.Config{Addr: cfg.Addr})
	srv.AddHandler(http.MethodPost, cfg.Path, func(w http.ResponseWriter, r *http.Request, _ httpserver.Params) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		queue = append(queue, body)
		mu.Unlock()
		b.Yield()
		w.WriteHeader(http.StatusAccepted)
	})

	b.SetWork(func(b *flowmesh.Block) error {
		mu.Lock()
		if len(queue) == 0 {
			mu.Unlock()
			return nil
		}
		body := queue[0]
		queue = queue[1:]
		more := len(queue) > 0
		mu.Unlock()

		seq++
		frame, err := mvrl.EncodeMessage(seq, 0, body)
		if err != nil {
			return err
		}
		out.PostBuffer(frame)

		if more {
			b.Yield()
		}
		return nil
	})

	return &Source{Block: b, server: srv}
}

// Start serves HTTP requests until the listener is closed or fails; callers
// that want the topology commit to proceed concurrently should run it in its
// own goroutine, as cmd/flowmesh does for its own embedded stats server.
func (s *Source) Start() error { return s.server.Start() }

// Close stops the embedded HTTP listener.
func (s *Source) Close() error { return s.server.Close(context.Background()) }
