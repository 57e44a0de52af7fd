package restyutil

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/semconv/v1.13.0/httpconv"
	"go.opentelemetry.io/otel/trace"
)

type spanCtxKeyType int

var spanCtxKey spanCtxKeyType

// requestSpan returns the span opened for the request, the span of the caller
// must never be ended here.
func requestSpan(ctx context.Context) (trace.Span, bool) {
	span, ok := ctx.Value(spanCtxKey).(trace.Span)
	return span, ok
}

// Trace opens a span for every request made through `client`. `tracer` can be
// nil, it then defaults to a tracer named "resty".
func Trace(client *resty.Client, tracer trace.Tracer) {
	if tracer == nil {
		tracer = otel.Tracer("resty")
	}

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		ctx, span := tracer.Start(req.Context(), fmt.Sprintf("http %s", req.Method))
		req.SetContext(context.WithValue(ctx, spanCtxKey, span))
		return nil
	})

	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		span, ok := requestSpan(res.Request.Context())
		if !ok {
			return nil
		}
		defer span.End()

		// RawRequest is still nil in OnBeforeRequest
		if res.Request.RawRequest != nil {
			span.SetAttributes(httpconv.ClientRequest(res.Request.RawRequest)...)
		}
		if res.RawResponse != nil {
			span.SetAttributes(httpconv.ClientResponse(res.RawResponse)...)
		}
		if res.IsError() {
			span.SetStatus(codes.Error, res.Status())
		}
		return nil
	})

	client.OnError(func(req *resty.Request, err error) {
		span, ok := requestSpan(req.Context())
		if !ok {
			return
		}
		defer span.End()

		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		if req.RawRequest != nil {
			span.SetAttributes(httpconv.ClientRequest(req.RawRequest)...)
		}
	})
}
