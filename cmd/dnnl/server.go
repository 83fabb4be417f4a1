package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/dustin/go-humanize"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/23skdu/longbow-dnnl/dnnl"
	"github.com/23skdu/longbow-dnnl/internal/client"
)

var errTooLarge = errors.New("request exceeds buffer budget")

type Executor interface {
	Execute(ctx context.Context, req *ExecuteRequest) ([]client.Tensor, error)
}

type ResultSink interface {
	Send(ctx context.Context, tensors []client.Tensor, meta map[string]string) error
	Close() error
}

// Server exposes the runner over HTTP. Admission is bounded both by the
// number of concurrent requests and by the input bytes held at once.
type Server struct {
	runner   Executor
	sink     ResultSink
	alloc    memory.Allocator
	slots    *semaphore.Weighted
	budget   *semaphore.Weighted
	maxBytes int64
}

func NewServer(runner Executor, sink ResultSink, maxConcurrent int, maxBytes int64) *Server {
	return &Server{
		runner:   runner,
		sink:     sink,
		alloc:    memory.NewGoAllocator(),
		slots:    semaphore.NewWeighted(int64(maxConcurrent)),
		budget:   semaphore.NewWeighted(maxBytes),
		maxBytes: maxBytes,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/execute", s.handleExecute)
	mux.HandleFunc("/execute/arrow", s.handleExecuteArrow)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

func startServer(addr string, srv *Server) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "dnnl_primitive_cache_capacity",
			Help: "Primitive cache capacity of the linked native library",
		},
		func() float64 {
			n, _ := dnnl.PrimitiveCacheCapacity()
			return float64(n)
		},
	))

	log.Info().Str("addr", addr).Str("max_buffer", humanize.IBytes(uint64(srv.maxBytes))).Msg("Starting dnnl server")
	if srv.sink != nil {
		log.Info().Msg("Forwarding results to Flight sink")
	}
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// admit blocks until the request fits the concurrency and byte budgets.
func (s *Server) admit(ctx context.Context, bytes int64) (func(), error) {
	if bytes > s.maxBytes {
		return nil, errors.Wrapf(errTooLarge, "%s > %s", humanize.IBytes(uint64(bytes)), humanize.IBytes(uint64(s.maxBytes)))
	}
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if err := s.budget.Acquire(ctx, bytes); err != nil {
		s.slots.Release(1)
		return nil, err
	}
	inflightBytes.Add(float64(bytes))
	return func() {
		inflightBytes.Sub(float64(bytes))
		s.budget.Release(bytes)
		s.slots.Release(1)
	}, nil
}

func (s *Server) execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error) {
	release, err := s.admit(ctx, req.Weight()*4)
	if err != nil {
		return nil, err
	}
	defer release()

	outputs, err := s.runner.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.Forward && s.sink != nil {
		if err := s.sink.Send(ctx, outputs, req.Metadata()); err != nil {
			log.Error().Err(err).Str("operation", req.Operation).Msg("Error forwarding results")
		}
	}
	return &ExecuteResponse{Operation: req.Operation, Outputs: outputs}, nil
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "handleExecute")
	defer span.End()
	start := time.Now()
	defer func() { requestDuration.WithLabelValues("execute").Observe(time.Since(start).Seconds()) }()

	if r.Method != http.MethodPost {
		s.fail(w, "execute", http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	var req ExecuteRequest
	if err := cbor.NewDecoder(r.Body).Decode(&req); err != nil {
		span.RecordError(err)
		s.fail(w, "execute", http.StatusBadRequest, errors.Wrap(err, "CBOR decode"))
		return
	}
	span.SetAttributes(attribute.String("operation", req.Operation), attribute.Int("inputs", len(req.Inputs)))

	resp, err := s.execute(ctx, &req)
	if err != nil {
		span.RecordError(err)
		s.fail(w, "execute", statusFor(err), err)
		return
	}
	body, err := cbor.Marshal(resp)
	if err != nil {
		s.fail(w, "execute", http.StatusInternalServerError, err)
		return
	}
	requestsTotal.WithLabelValues("execute", "200").Inc()
	w.Header().Set("Content-Type", "application/cbor")
	_, _ = w.Write(body)
}

// handleExecuteArrow reads tensor records from an Arrow IPC stream, runs
// each record through the operation named in the query string and streams
// the outputs back as tensor records.
func (s *Server) handleExecuteArrow(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "handleExecuteArrow")
	defer span.End()
	start := time.Now()
	defer func() { requestDuration.WithLabelValues("execute_arrow").Observe(time.Since(start).Seconds()) }()

	if r.Method != http.MethodPost {
		s.fail(w, "execute_arrow", http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	q := r.URL.Query()
	base, err := requestFromParams(func(k string) (string, bool) {
		v, ok := q[k]
		if !ok || len(v) == 0 {
			return "", false
		}
		return v[0], true
	})
	if err != nil {
		s.fail(w, "execute_arrow", http.StatusBadRequest, err)
		return
	}
	reader, err := ipc.NewReader(r.Body, ipc.WithAllocator(s.alloc))
	if err != nil {
		s.fail(w, "execute_arrow", http.StatusBadRequest, errors.Wrap(err, "create IPC reader"))
		return
	}
	defer reader.Release()

	builder := client.NewTensorRecordBuilder(s.alloc)
	var writer *ipc.Writer
	batches := 0
	for reader.Next() {
		inputs, err := client.TensorsFromRecord(reader.Record())
		if err == nil {
			req := *base
			req.Inputs = inputs
			var resp *ExecuteResponse
			if resp, err = s.execute(ctx, &req); err == nil {
				err = s.writeOutputs(w, &writer, builder, resp, req.Metadata())
			}
		}
		if err != nil {
			span.RecordError(err)
			if writer == nil {
				s.fail(w, "execute_arrow", statusFor(err), err)
				return
			}
			// the status line is already sent
			log.Error().Err(err).Int("batch", batches).Msg("Arrow execute failed mid-stream")
			requestsTotal.WithLabelValues("execute_arrow", "aborted").Inc()
			_ = writer.Close()
			return
		}
		batches++
	}
	if err := reader.Err(); err != nil && writer == nil {
		s.fail(w, "execute_arrow", http.StatusBadRequest, errors.Wrap(err, "read Arrow stream"))
		return
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Arrow writer")
		}
	} else {
		w.WriteHeader(http.StatusOK)
	}
	span.SetAttributes(attribute.Int("batches", batches))
	requestsTotal.WithLabelValues("execute_arrow", "200").Inc()
}

func (s *Server) writeOutputs(w http.ResponseWriter, writer **ipc.Writer, b *client.TensorRecordBuilder, resp *ExecuteResponse, meta map[string]string) error {
	rec, err := b.Build(resp.Outputs, meta)
	if err != nil || rec == nil {
		return err
	}
	defer rec.Release()
	if *writer == nil {
		w.Header().Set("Content-Type", "application/vnd.apache.arrow.stream")
		*writer = ipc.NewWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(s.alloc))
	}
	return (*writer).Write(rec)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) fail(w http.ResponseWriter, endpoint string, code int, err error) {
	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Str("endpoint", endpoint).Msg("request failed")
	}
	http.Error(w, fmt.Sprintf("%s: %v", http.StatusText(code), err), code)
}

// statusFor maps library error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	var de *dnnl.Error
	if !errors.As(err, &de) {
		return http.StatusInternalServerError
	}
	switch de.Kind {
	case dnnl.KindUnsupported:
		return http.StatusNotImplemented
	case dnnl.KindOutOfMemory:
		return http.StatusInsufficientStorage
	case dnnl.KindRuntimeError, dnnl.KindUnknown:
		return http.StatusInternalServerError
	}
	return http.StatusUnprocessableEntity
}
