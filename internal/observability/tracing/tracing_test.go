package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func TestDisabledProviderIsNoop(t *testing.T) {
	provider, err := NewProvider(nil, Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, provider)
}

func TestUnsupportedProtocol(t *testing.T) {
	_, err := NewProvider(nil, Config{Enabled: true, ExporterProtocol: "carrier-pigeon"}, zap.NewNop())
	assert.Error(t, err)
}

func TestWrapHTTPClientRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	defer otel.SetTracerProvider(orig)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := WrapHTTPClient(srv.Client())
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/v1/customers/cus_1", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "HTTP GET /v1/customers/cus_1", spans[0].Name())
	assert.Equal(t, "Error", spans[0].Status().Code.String())
}

func TestProcessorCallSpanCarriesOutcome(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	_, ok := StartProcessorCall(context.Background(), tracer, "stripe", "create_customer")
	EndProcessorCall(ok, 1, "", nil)
	ok.End()

	_, failed := StartProcessorCall(context.Background(), tracer, "xendit", "get_charge")
	EndProcessorCall(failed, 3, "network", errors.New("dial tcp: timeout"))
	failed.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "processor.create_customer", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), AttrProcessor.String("stripe"))
	assert.Contains(t, spans[0].Attributes(), AttrAttempts.Int(1))
	assert.Equal(t, "Unset", spans[0].Status().Code.String())

	assert.Contains(t, spans[1].Attributes(), AttrErrorKind.String("network"))
	assert.Contains(t, spans[1].Attributes(), AttrAttempts.Int(3))
	assert.Equal(t, "Error", spans[1].Status().Code.String())
	assert.Equal(t, "network", spans[1].Status().Description)
	require.Len(t, spans[1].Events(), 1)
}

func TestSamplingRatioBounds(t *testing.T) {
	assert.Equal(t, defaultSamplingRatio, samplingRatio(0))
	assert.Equal(t, 1.0, samplingRatio(4))
	assert.Equal(t, 0.25, samplingRatio(0.25))
}
