package main

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

// Command flowmesh is the thin C8 host binary: it loads a JSON topology
// description, builds and commits it, serves the /topology and /stats HTTP
// endpoints, and blocks until the process receives SIGINT or SIGTERM.
import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/brunotm/flowmesh"
	"github.com/brunotm/flowmesh/blocks/pingpong"
	"github.com/brunotm/flowmesh/compile"
	"github.com/brunotm/flowmesh/internal/httpserver"
	"github.com/brunotm/flowmesh/log"
	"github.com/brunotm/flowmesh/scheduler"
	"github.com/brunotm/flowmesh/topodesc"
)

var logger = log.New("component", "flowmesh")

func main() {
	var addr string
	var schedSize int

	root := &cobra.Command{
		Use:   "flowmesh <topology.json>",
		Short: "Run a flowmesh dataflow topology described as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], addr, schedSize)
		},
	}
	root.Flags().StringVar(&addr, "http", ":8088", "address to serve /topology and /stats on")
	root.Flags().IntVar(&schedSize, "workers", 4, "scheduler pool size")

	if err := root.Execute(); err != nil {
		logger.Errorw("flowmesh exited with error", "error", err)
		os.Exit(1)
	}
}

func run(path string, addr string, schedSize int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening topology description: %w", err)
	}
	defer f.Close()

	desc, err := topodesc.Decode(f)
	if err != nil {
		return &flowmesh.DataFormatError{Msg: err.Error()}
	}

	registry := topodesc.NewRegistry()
	registerBuiltins(registry)

	topo := flowmesh.NewTopology(scheduler.Config{Size: schedSize})
	ids := make(map[string]flowmesh.BlockID, len(desc.Blocks))

	for _, bd := range desc.Blocks {
		built, err := registry.Build(bd)
		if err != nil {
			return fmt.Errorf("building block %q: %w", bd.ID, err)
		}
		block, ok := built.(*flowmesh.Block)
		if !ok {
			return fmt.Errorf("building block %q: factory did not return a *flowmesh.Block", bd.ID)
		}
		id := topo.AddBlock(block)
		ids[bd.ID] = id

		for _, c := range bd.Calls {
			if _, err := block.Call(c.Name, c.Args...); err != nil {
				return fmt.Errorf("block %q call %q: %w", bd.ID, c.Name, err)
			}
		}
	}

	for _, cd := range desc.Connections {
		srcID, ok := ids[cd.SrcID]
		if !ok {
			return fmt.Errorf("connection references unknown block %q", cd.SrcID)
		}
		dstID, ok := ids[cd.DstID]
		if !ok {
			return fmt.Errorf("connection references unknown block %q", cd.DstID)
		}
		topo.Connect(
			flowmesh.Endpoint{Block: srcID, Port: cd.SrcPort},
			flowmesh.Endpoint{Block: dstID, Port: cd.DstPort},
		)
	}

	if err := topo.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	logger.Infow("topology committed", "blocks", len(desc.Blocks), "connections", len(desc.Connections))

	srv := httpserver.New(httpserver.Config{Addr: addr})
	srv.AddHandler(http.MethodGet, "/stats", statsHandler(topo))
	srv.AddHandler(http.MethodGet, "/topology", topologyHandler(topo))
	go func() {
		if err := srv.Start(); err != nil {
			logger.Errorw("http server stopped", "error", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Infow("shutting down")
	return topo.Destroy()
}

func statsHandler(topo *flowmesh.Topology) httpserver.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httpserver.Params) {
		if err := topodesc.Encode(w, topo.Stats()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// topologyHandler serves a Topology.Dump under the mode named by the
// "mode" query parameter ("top", "flat", "rendered"; default "rendered").
func topologyHandler(topo *flowmesh.Topology) httpserver.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httpserver.Params) {
		mode := compile.DumpMode(r.URL.Query().Get("mode"))
		if mode == "" {
			mode = compile.DumpRendered
		}
		dump, err := topo.Dump(mode)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := topodesc.Encode(w, dump); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// registerBuiltins wires the stock example blocks shipped with this module
// into a fresh registry; a real deployment would link additional factories
// in from its own packages.
func registerBuiltins(r *topodesc.Registry) {
	// The id passed here is a placeholder: Topology.AddBlock assigns the
	// real, topology-unique BlockID once the block is registered.
	r.Register("blocks/pingpong/ping", func(args []interface{}) (interface{}, error) {
		// Positional args decoded off JSON arrive as string/float64/bool/nil;
		// cast coerces whichever JSON-native type the evaluator produced
		// (e.g. a bare numeric literal for limit) into the Go type the
		// constructor wants.
		pattern := []byte("x")
		if len(args) > 0 {
			p, err := cast.ToStringE(args[0])
			if err != nil {
				return nil, fmt.Errorf("ping arg 0 (pattern): %w", err)
			}
			pattern = []byte(p)
		}
		limit := 0
		if len(args) > 1 {
			l, err := cast.ToIntE(args[1])
			if err != nil {
				return nil, fmt.Errorf("ping arg 1 (limit): %w", err)
			}
			limit = l
		}
		return pingpong.NewPing(0, pattern, limit), nil
	})
	r.Register("blocks/pingpong/pong", func(args []interface{}) (interface{}, error) {
		return pingpong.NewPong(0), nil
	})
}
