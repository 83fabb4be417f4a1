package client

import (
	"context"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// FlightClient puts record batches to an Arrow Flight server.
type FlightClient struct {
	client flight.Client
	conn   *grpc.ClientConn
}

// NewFlightClient connects lazily; the first DoPut dials addr.
func NewFlightClient(addr string) (*FlightClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, errors.Wrapf(err, "dial flight server %s", addr)
	}
	return &FlightClient{
		client: flight.NewClientFromConn(conn, nil),
		conn:   conn,
	}, nil
}

// DoPut sends record under the PATH descriptor {dataset}.
func (c *FlightClient) DoPut(ctx context.Context, dataset string, record arrow.RecordBatch) error {
	stream, err := c.client.DoPut(ctx)
	if err != nil {
		return errors.Wrap(err, "open DoPut stream")
	}

	writer := flight.NewRecordWriter(stream)
	writer.SetFlightDescriptor(&flight.FlightDescriptor{
		Type: flight.DescriptorPATH,
		Path: []string{dataset},
	})
	werr := writer.Write(record)
	if cerr := writer.Close(); werr == nil {
		werr = cerr
	}
	// io.EOF means the server ended the call; its status comes from Recv
	if werr != nil && !errors.Is(werr, io.EOF) {
		return errors.Wrap(werr, "write record")
	}
	if err := stream.CloseSend(); err != nil {
		return errors.Wrap(err, "close send")
	}
	for {
		if _, err := stream.Recv(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrap(err, "DoPut")
		}
	}
}

func (c *FlightClient) Close() error { return c.conn.Close() }

// Putter is the part of FlightClient the sink needs.
type Putter interface {
	DoPut(ctx context.Context, dataset string, record arrow.RecordBatch) error
	Close() error
}

// Sink delivers tensor results to a Flight dataset, skipping delivery while
// the breaker is open.
type Sink struct {
	putter  Putter
	dataset string
	builder *TensorRecordBuilder
	breaker *CircuitBreaker
	timeout time.Duration
}

// NewSink wraps p. A zero timeout leaves deadlines to the caller's context.
func NewSink(p Putter, dataset string, timeout time.Duration) *Sink {
	return &Sink{
		putter:  p,
		dataset: dataset,
		builder: NewTensorRecordBuilder(nil),
		breaker: NewCircuitBreaker("flight:"+dataset, 3, 10*time.Second),
		timeout: timeout,
	}
}

func (s *Sink) Dataset() string          { return s.dataset }
func (s *Sink) Breaker() *CircuitBreaker { return s.breaker }

// Send builds one record from tensors and puts it. meta is attached as
// schema metadata.
func (s *Sink) Send(ctx context.Context, tensors []Tensor, meta map[string]string) error {
	rec, err := s.builder.Build(tensors, meta)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	defer rec.Release()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	err = s.breaker.Do(func() error { return s.putter.DoPut(ctx, s.dataset, rec) })
	switch {
	case errors.Is(err, ErrCircuitOpen):
		sendFailures.WithLabelValues(s.dataset, "open").Inc()
		return err
	case err != nil:
		sendFailures.WithLabelValues(s.dataset, "error").Inc()
		return errors.Wrapf(err, "send %d tensors to %s", len(tensors), s.dataset)
	}
	recordsSent.WithLabelValues(s.dataset).Inc()
	log.Debug().Str("dataset", s.dataset).Int("tensors", len(tensors)).Msg("sent tensors")
	return nil
}

func (s *Sink) Close() error { return s.putter.Close() }
