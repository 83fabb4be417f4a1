package main

import (
	"net/http"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/23skdu/longbow-dnnl/internal/client"
)

// DnnlFlightServer runs every tensor record put to it through the
// operation named in the record's schema metadata. Each record is answered
// with a PutResult whose app metadata is the CBOR ExecuteResponse.
type DnnlFlightServer struct {
	flight.BaseFlightServer
	srv *Server
}

func NewDnnlFlightServer(srv *Server) *DnnlFlightServer {
	return &DnnlFlightServer{srv: srv}
}

func (s *DnnlFlightServer) DoPut(stream flight.FlightService_DoPutServer) error {
	reader, err := flight.NewRecordReader(stream, ipc.WithAllocator(s.srv.alloc))
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "read flight stream: %v", err)
	}
	defer reader.Release()

	for reader.Next() {
		rec := reader.Record()
		resp, err := s.execute(stream, rec)
		if err != nil {
			log.Error().Err(err).Int64("rows", rec.NumRows()).Msg("DoPut batch failed")
			return status.Error(grpcCode(err), err.Error())
		}
		body, err := cbor.Marshal(resp)
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		if err := stream.Send(&flight.PutResult{AppMetadata: body}); err != nil {
			return err
		}
		log.Info().Str("operation", resp.Operation).Int64("rows", rec.NumRows()).Msg("DoPut executed batch")
	}
	return reader.Err()
}

func (s *DnnlFlightServer) execute(stream flight.FlightService_DoPutServer, rec arrow.RecordBatch) (*ExecuteResponse, error) {
	md := rec.Schema().Metadata()
	req, err := requestFromParams(md.GetValue)
	if err != nil {
		return nil, err
	}
	if req.Inputs, err = client.TensorsFromRecord(rec); err != nil {
		return nil, errors.Wrap(errBadRequest, err.Error())
	}
	return s.srv.execute(stream.Context(), req)
}

func (s *DnnlFlightServer) DoExchange(flight.FlightService_DoExchangeServer) error {
	return status.Error(codes.Unimplemented, "DoExchange not implemented")
}

func grpcCode(err error) codes.Code {
	switch statusFor(err) {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return codes.InvalidArgument
	case http.StatusRequestEntityTooLarge, http.StatusInsufficientStorage:
		return codes.ResourceExhausted
	case http.StatusNotImplemented:
		return codes.Unimplemented
	case http.StatusServiceUnavailable:
		return codes.Unavailable
	}
	return codes.Internal
}

func StartFlightServer(addr string, srv *Server) {
	server := flight.NewServerWithMiddleware(nil)
	server.RegisterFlightService(NewDnnlFlightServer(srv))
	if err := server.Init(addr); err != nil {
		log.Fatal().Err(err).Msg("Failed to init Flight server")
	}
	log.Info().Str("addr", addr).Msg("Starting dnnl Flight server")
	if err := server.Serve(); err != nil {
		log.Fatal().Err(err).Msg("Flight server failed")
	}
}
