// Package server implements the event-serial request loop described in
// spec §4.K/§5: one request read at a time, answered inline for
// blocking opcodes and cache hits, or handed to a worker goroutine —
// standing in for the original fork-per-request design per spec §9's
// explicit goroutine/channel equivalence note — for everything else.
package server

import (
	"fmt"

	"github.com/calvinalkan/dindex/internal/cache"
	"github.com/calvinalkan/dindex/internal/command"
	"github.com/calvinalkan/dindex/internal/dispatch"
	"github.com/calvinalkan/dindex/internal/logging"
	"github.com/calvinalkan/dindex/internal/store"
	"github.com/calvinalkan/dindex/internal/transport"
	"github.com/calvinalkan/dindex/internal/wire"
)

// CachePath and StorePath name the on-disk artefacts under a run
// directory (spec §6): "tmp/index.bin" and "tmp/cache_lru.bin".
const (
	StorePath = "index.bin"
	CachePath = "cache_lru.bin"
)

// Server owns the process-wide singletons named in spec §9's "Global
// mutable state" note: the record store descriptor, the cache, the
// document root, and the transport, all passed by reference into
// handlers rather than held as package globals.
type Server struct {
	Store     *store.Store
	Cache     *cache.Cache
	DocRoot   string
	FIFODir   string
	CachePath string
	Log       *logging.Logger

	transport *transport.Server
	deps      *dispatch.Deps
}

// New wires a Server's collaborators together. CachePath is the
// absolute path Run will persist the cache to on shutdown.
func New(st *store.Store, c *cache.Cache, docRoot, fifoDir, cachePath string, log *logging.Logger) *Server {
	return &Server{
		Store:     st,
		Cache:     c,
		DocRoot:   docRoot,
		FIFODir:   fifoDir,
		CachePath: cachePath,
		Log:       log,
		deps:      &dispatch.Deps{Store: st, DocRoot: docRoot},
	}
}

// workerResult is the goroutine-channel equivalent of the original
// design's unidirectional pipe: the parent reads exactly one value per
// spawned worker and never blocks beyond that one receive.
type workerResult struct {
	frame  []byte
	status wire.Status
}

// Run opens the well-known server FIFO, then loops: read one request,
// dispatch it per spec §4.K, and reply. It returns when a handler
// signals Shutdown, after the reply has been sent, the cache persisted,
// and the store and transport closed.
func (s *Server) Run() error {
	t, err := transport.ListenServer(s.FIFODir)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}

	s.transport = t

	for {
		header, frame, err := t.ReadRequest()
		if err != nil {
			s.Log.Error("malformed request frame: %v", err)
			continue
		}

		shutdown, err := s.handleOne(header, frame)
		if err != nil {
			s.Log.Error("handling request: %v", err)
			continue
		}

		if shutdown {
			return s.drain()
		}
	}
}

// handleOne dispatches a single request and replies to its client. It
// returns shutdown=true once the Shutdown handler's reply has been sent.
func (s *Server) handleOne(header wire.RequestHeader, frame []byte) (bool, error) {
	row, ok := command.Lookup(command.Opcode(header.Opcode))
	if !ok {
		s.Log.Warn("unknown opcode %q from pid %d: dropped", header.Opcode, header.PID)
		return false, nil
	}

	payload := frame[wire.RequestHeaderSize:]

	if row.Opcode == command.Search {
		if kw, err := wire.FirstString(payload, wire.MaxFrameSize); err == nil {
			if cached, hit := s.Cache.Get(kw); hit {
				return false, s.reply(int(header.PID), cached)
			}
		}
	}

	var (
		respFrame []byte
		status    wire.Status
	)

	if row.Blocking {
		respFrame, status = dispatch.Dispatch(s.deps, row, payload)
	} else {
		res, err := s.runWorker(row, payload)
		if err != nil {
			s.Log.Error("worker failed for pid %d: %v", header.PID, err)
			return false, nil
		}

		respFrame, status = res.frame, res.status
	}

	if respFrame == nil {
		respFrame = wire.SimpleResponse(byte(row.Opcode), wire.Error, "ERR")
	}

	if row.Opcode == command.Search && status == wire.Ok {
		if kw, err := wire.FirstString(payload, wire.MaxFrameSize); err == nil {
			s.Cache.Put(kw, respFrame)
		}
	}

	if err := s.reply(int(header.PID), respFrame); err != nil {
		s.Log.Warn("reply to pid %d failed: %v", header.PID, err)
	}

	return status == wire.Shutdown, nil
}

// runWorker runs the dispatcher on a separate goroutine and reads back
// exactly one result over a capacity-1 channel — the pipe-equivalent
// described in spec §4.K. On panic recovery it synthesises the same
// "ERR" simple response the original fork-based child would on error,
// so the parent always receives a frame.
func (s *Server) runWorker(row command.Row, payload []byte) (workerResult, error) {
	resultCh := make(chan workerResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- workerResult{
					frame:  wire.SimpleResponse(byte(row.Opcode), wire.Error, "ERR"),
					status: wire.Error,
				}
			}
		}()

		frame, status := dispatch.Dispatch(s.deps, row, payload)
		resultCh <- workerResult{frame: frame, status: status}
	}()

	res := <-resultCh

	return res, nil
}

// reply sends frame to the client identified by pid over its private
// reply FIFO.
func (s *Server) reply(pid int, frame []byte) error {
	return transport.Reply(s.FIFODir, pid, frame)
}

// drain implements spec §4.K's shutdown sequence: persist the cache,
// close the store, and close the transport, in that order.
func (s *Server) drain() error {
	if err := s.Cache.Cleanup(s.CachePath); err != nil {
		s.Log.Error("persisting cache: %v", err)
	}

	if err := s.Store.Close(); err != nil {
		s.Log.Error("closing store: %v", err)
	}

	if err := s.transport.Shutdown(); err != nil {
		return fmt.Errorf("server: transport shutdown: %w", err)
	}

	return nil
}
