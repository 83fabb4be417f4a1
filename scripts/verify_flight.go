//go:build ignore

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/23skdu/longbow-dnnl/internal/client"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Puts one binary_add batch to a running `dnnl -flight` server.
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	addr := "localhost:9090"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}

	log.Info().Str("addr", addr).Msg("Connecting to dnnl Flight Server")
	fc, err := client.NewFlightClient(addr)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create flight client")
	}
	sink := client.NewSink(fc, "verify", 5*time.Second)
	defer sink.Close()

	inputs := []client.Tensor{
		{Name: "src0", Dims: []int64{3}, Data: []float32{4, 5, 6}},
		{Name: "src1", Dims: []int64{3}, Data: []float32{1, 2, 3}},
	}
	meta := map[string]string{"operation": "binary", "algorithm": "binary_add"}

	start := time.Now()
	// the server may still be starting; retry until the breaker opens
	for {
		err = sink.Send(context.Background(), inputs, meta)
		if err == nil {
			break
		}
		if errors.Is(err, client.ErrCircuitOpen) {
			log.Fatal().Err(err).Msg("Send failed after retries")
		}
		log.Warn().Err(err).Msg("Send failed, retrying...")
		time.Sleep(1 * time.Second)
	}

	log.Info().Dur("elapsed", time.Since(start)).Msg("Batch executed")
	fmt.Println("VERIFICATION PASSED")
}
