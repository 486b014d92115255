package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tbourn/go-feedback-bot/internal/config"
)

// keepGlobals restores the OTel globals after the test.
func keepGlobals(t *testing.T) {
	t.Helper()
	tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

func enabled(name string, insecure bool) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    insecure,
		Endpoint:    "localhost:4317",
		ServiceName: name,
		SampleRatio: 1.0,
	}
}

func setup(t *testing.T, ctx context.Context, cfg config.OTELConfig) ShutdownFunc {
	t.Helper()
	shutdown, err := SetupOTel(ctx, cfg, "v1.0.0")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	if shutdown == nil {
		t.Fatalf("nil shutdown")
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })
	return shutdown
}

func TestSetupOTel_DisabledIsNoOp(t *testing.T) {
	keepGlobals(t)
	before := otel.GetTracerProvider()

	shutdown := setup(t, context.Background(), config.OTELConfig{Enabled: false, Endpoint: "ignored:4317"})
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatalf("disabled tracing replaced the provider")
	}
}

func TestSetupOTel_InstallsProviderAndPropagator(t *testing.T) {
	for _, insecure := range []bool{true, false} {
		keepGlobals(t)
		setup(t, context.Background(), enabled("feedback-bot", insecure))

		if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
			t.Fatalf("insecure=%v: expected *sdktrace.TracerProvider", insecure)
		}

		// A sampled span survives a propagation round trip.
		ctx, span := otel.Tracer("services/LifecycleService").Start(context.Background(), "Submit")
		carrier := propagation.MapCarrier{}
		otel.GetTextMapPropagator().Inject(ctx, carrier)
		span.End()
		if carrier.Get("traceparent") == "" {
			t.Fatalf("insecure=%v: traceparent not injected", insecure)
		}
	}
}

func TestSetupOTel_CanceledContextStillSucceeds(t *testing.T) {
	keepGlobals(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // the gRPC client connects lazily
	setup(t, ctx, enabled("feedback-bot-canceled", true))
}

func TestSetupOTel_FailuresLeaveGlobalsIntact(t *testing.T) {
	origExp, origRes := newOTLPExporterFn, newServiceResourceFn
	t.Cleanup(func() { newOTLPExporterFn, newServiceResourceFn = origExp, origRes })

	cases := map[string]func(){
		"exporter": func() {
			newOTLPExporterFn = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) {
				return nil, errors.New("boom-exporter")
			}
		},
		"resource": func() {
			newServiceResourceFn = func(context.Context, string, string) (*resource.Resource, error) {
				return nil, errors.New("boom-resource")
			}
		},
	}
	for name, breakIt := range cases {
		t.Run(name, func(t *testing.T) {
			keepGlobals(t)
			newOTLPExporterFn, newServiceResourceFn = origExp, origRes
			breakIt()

			prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
			if _, err := SetupOTel(context.Background(), enabled("svc", true), "v0"); err == nil {
				t.Fatalf("expected error")
			}
			if otel.GetTracerProvider() != prevTP || otel.GetTextMapPropagator() != prevProp {
				t.Fatalf("globals changed on failure")
			}
		})
	}
}

func TestShutdown_WithinDeadline(t *testing.T) {
	keepGlobals(t)
	shutdown := setup(t, context.Background(), enabled("feedback-bot-shutdown", true))

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestExporterOptions(t *testing.T) {
	insecure := exporterOptions(config.OTELConfig{Endpoint: "otel:4317", Insecure: true})
	secure := exporterOptions(config.OTELConfig{Endpoint: "otel:4317"})
	if len(insecure) != 2 || len(secure) != 2 {
		t.Fatalf("options: insecure=%d secure=%d", len(insecure), len(secure))
	}
	for _, opts := range [][]otlptracegrpc.Option{insecure, secure} {
		if c := otlptracegrpc.NewClient(opts...); c == nil {
			t.Fatalf("nil client")
		}
	}
}

func TestServiceResource_Attributes(t *testing.T) {
	res, err := newServiceResourceFn(context.Background(), "feedback-bot", "v1.0.0")
	if err != nil {
		t.Fatalf("resource: %v", err)
	}
	want := map[string]string{"service.name": "feedback-bot", "service.version": "v1.0.0"}
	seen := map[string]bool{}
	for _, kv := range res.Attributes() {
		k := string(kv.Key)
		if v, ok := want[k]; ok && kv.Value.AsString() != v {
			t.Fatalf("%s = %q; want %q", k, kv.Value.AsString(), v)
		}
		seen[k] = true
	}
	for _, k := range []string{"service.name", "service.version", "service.instance.id"} {
		if !seen[k] {
			t.Fatalf("missing resource attribute %s", k)
		}
	}
}
