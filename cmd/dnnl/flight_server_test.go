package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/23skdu/longbow-dnnl/internal/client"
)

func startTestFlightServer(t *testing.T) flight.Client {
	t.Helper()
	server := flight.NewServerWithMiddleware(nil)
	server.RegisterFlightService(NewDnnlFlightServer(NewServer(newTestRunner(t), nil, 4, 1<<20)))
	require.NoError(t, server.Init("localhost:0"))
	go func() { _ = server.Serve() }()
	t.Cleanup(server.Shutdown)

	conn, err := grpc.NewClient(server.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return flight.NewClientFromConn(conn, nil)
}

// put sends one tensor record and returns the server's acknowledgements.
func put(t *testing.T, fc flight.Client, req *ExecuteRequest) ([]*flight.PutResult, error) {
	t.Helper()
	rec, err := client.NewTensorRecordBuilder(nil).Build(req.Inputs, req.Metadata())
	require.NoError(t, err)
	defer rec.Release()

	stream, err := fc.DoPut(context.Background())
	require.NoError(t, err)
	w := flight.NewRecordWriter(stream)
	w.SetFlightDescriptor(&flight.FlightDescriptor{Type: flight.DescriptorPATH, Path: []string{"jobs"}})
	// a rejected batch ends the call early; the status arrives through Recv
	_ = w.Write(rec)
	_ = w.Close()
	_ = stream.CloseSend()

	var acks []*flight.PutResult
	for {
		res, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return acks, nil
			}
			return acks, err
		}
		acks = append(acks, res)
	}
}

func TestFlightServerDoPutExecutes(t *testing.T) {
	fc := startTestFlightServer(t)

	req := &ExecuteRequest{
		Operation: "matmul",
		Inputs: []client.Tensor{
			tensor("src", []int64{2, 3}, 1, 2, 3, 4, 5, 6),
			tensor("weights", []int64{3, 2}, 7, 8, 9, 10, 11, 12),
		},
	}
	acks, err := put(t, fc, req)
	require.NoError(t, err)
	require.Len(t, acks, 1)

	var resp ExecuteResponse
	require.NoError(t, cbor.Unmarshal(acks[0].AppMetadata, &resp))
	assert.Equal(t, "matmul", resp.Operation)
	require.Len(t, resp.Outputs, 1)
	assert.Equal(t, []float32{58, 64, 139, 154}, resp.Outputs[0].Data)
}

func TestFlightServerDoPutRejects(t *testing.T) {
	fc := startTestFlightServer(t)

	_, err := put(t, fc, &ExecuteRequest{
		Operation: "softmax",
		Inputs:    []client.Tensor{tensor("src", []int64{2}, 1, 2)},
	})
	assert.Equal(t, codes.Unimplemented, status.Code(err))

	_, err = put(t, fc, &ExecuteRequest{
		Operation: "eltwise", Algorithm: "eltwise_relu",
		Inputs: []client.Tensor{tensor("x", []int64{2}, 1, 2)},
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
