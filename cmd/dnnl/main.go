package main

import (
	"context"
	"flag"
	"io"
	"os"
	"runtime/pprof"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/23skdu/longbow-dnnl/dnnl"
	"github.com/23skdu/longbow-dnnl/internal/client"
)

var (
	engineKind    = flag.String("engine", "cpu", "Engine kind (cpu, gpu, any)")
	engineIndex   = flag.Int("engine-index", 0, "Engine index within its kind")
	streamOrder   = flag.String("stream", "in-order", "Stream order (in-order, out-of-order)")
	cacheCapacity = flag.Int("cache-capacity", -1, "Primitive cache capacity (-1 keeps the library default)")
	cpuProfile    = flag.String("cpuprofile", "", "Write cpu profile to file")
	logLevel      = flag.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	duration      = flag.Duration("duration", 0, "Run soak test for specified duration (e.g. 10s, 20m)")
	soakSize      = flag.Int64("soak-size", 256, "Matrix size of the soak test matmul")
	writeArrow    = flag.Bool("arrow", false, "Write smoke results to stdout as an Arrow IPC stream")
	serverAddr    = flag.String("server", "", "Flight server to send results to (e.g., localhost:3000)")
	datasetName   = flag.String("dataset", "dnnl_results", "Target dataset name on the Flight server")
	listenAddr    = flag.String("listen", "", "Address to listen on for HTTP Server (e.g. :8080)")
	flightAddr    = flag.String("flight", "", "Address to listen on for Flight Server (e.g. :9090)")
	maxConcurrent = flag.Int("max-concurrent", 64, "Maximum number of concurrent execute requests")
	maxBuffer     = flag.String("max-buffer", "256MB", "Maximum input bytes admitted at once (e.g. 1GB, 512MiB)")
	enableOTel    = flag.Bool("otel", false, "Enable OpenTelemetry tracing (stdout)")
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	flag.Parse()

	if lvl, err := zerolog.ParseLevel(*logLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", *logLevel).Msg("Unknown log level, keeping info")
	}

	if *enableOTel {
		shutdown, err := initTracer()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tracer")
		}
		defer shutdown(context.Background())
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create CPU profile file")
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("Could not start CPU profile")
		}
		defer pprof.StopCPUProfile()
	}

	if *cacheCapacity >= 0 {
		if err := dnnl.SetPrimitiveCacheCapacity(*cacheCapacity); err != nil {
			log.Fatal().Err(err).Msg("Failed to set primitive cache capacity")
		}
	}

	kind, err := parseEngineKind(*engineKind)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid engine")
	}
	flags, err := parseStreamOrder(*streamOrder)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid stream order")
	}
	runner, err := NewRunner(kind, *engineIndex, flags)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create runner")
	}
	defer runner.Close()
	capacity, _ := dnnl.PrimitiveCacheCapacity()
	log.Info().
		Str("library", dnnl.LibraryName()).
		Stringer("engine", kind).
		Int("devices", dnnl.EngineCount(kind)).
		Int("cache_capacity", capacity).
		Msg("Engine ready")

	var sink *client.Sink
	if *serverAddr != "" {
		fc, err := client.NewFlightClient(*serverAddr)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create flight client")
		}
		log.Info().Str("addr", *serverAddr).Str("dataset", *datasetName).Msg("Connected to Flight Server")
		sink = client.NewSink(fc, *datasetName, 60*time.Second)
		defer func() {
			if err := sink.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close flight client")
			}
		}()
	}

	if *listenAddr != "" || *flightAddr != "" {
		maxBytes, err := humanize.ParseBytes(*maxBuffer)
		if err != nil {
			log.Fatal().Err(err).Str("max_buffer", *maxBuffer).Msg("Invalid buffer budget")
		}
		var rs ResultSink
		if sink != nil {
			rs = sink
		}
		srv := NewServer(runner, rs, *maxConcurrent, int64(maxBytes))
		if *listenAddr != "" {
			go startServer(*listenAddr, srv)
		}
		if *flightAddr != "" {
			StartFlightServer(*flightAddr, srv)
			return
		}
		select {}
	}

	ctx := context.Background()
	if *duration > 0 {
		if err := soak(ctx, runner, *soakSize, *duration); err != nil {
			log.Fatal().Err(err).Msg("Soak test failed")
		}
		return
	}

	start := time.Now()
	results, err := runSmoke(ctx, runner)
	if err != nil {
		log.Fatal().Err(err).Msg("Smoke pipeline failed")
	}
	for _, t := range results {
		log.Info().Str("name", t.Name).Ints64("dims", t.Dims).Floats32("values", t.Data).Msg("Result")
	}
	log.Info().Dur("elapsed", time.Since(start)).Int("results", len(results)).Msg("Smoke pipeline complete")

	meta := map[string]string{"source": "smoke", "library": dnnl.LibraryName()}
	switch {
	case sink != nil:
		if err := sink.Send(ctx, results, meta); err != nil {
			log.Fatal().Err(err).Msg("Flight DoPut failed")
		}
		log.Info().Msg("Successfully sent results")
	case *writeArrow:
		rec, err := client.NewTensorRecordBuilder(nil).Build(results, meta)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to build record")
		}
		defer rec.Release()
		if err := writeArrowStream(os.Stdout, rec); err != nil {
			log.Warn().Err(err).Msg("Failed to write arrow stream")
		}
	}
}

func parseEngineKind(s string) (dnnl.EngineKind, error) {
	for _, k := range []dnnl.EngineKind{dnnl.CPU, dnnl.GPU, dnnl.AnyEngine} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, errors.Errorf("unknown engine kind %q", s)
}

func parseStreamOrder(s string) (dnnl.StreamFlags, error) {
	switch s {
	case "in-order":
		return dnnl.StreamInOrder, nil
	case "out-of-order":
		return dnnl.StreamOutOfOrder, nil
	}
	return 0, errors.Errorf("unknown stream order %q", s)
}

func writeArrowStream(w io.Writer, rec arrow.RecordBatch) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()))
	if err := writer.Write(rec); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}

func initTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("dnnl"),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp.Shutdown, nil
}
