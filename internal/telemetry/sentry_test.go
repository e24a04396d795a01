package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_EmptyDSNIsNoop(t *testing.T) {
	shutdown, err := Init(Config{})

	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown()
}

func TestStartSpan_NestsUnderParent(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "TutorService.Ask", SpanAttributes{
		UserID:    "learner-1",
		SessionID: "s1",
		Operation: "ask",
	})
	defer root.End()

	assert.Equal(t, "learner-1", root.inner.Tags["user_id"])
	assert.Equal(t, "s1", root.inner.Tags["session_id"])
	assert.NotContains(t, root.inner.Tags, "document_id")
	assert.Equal(t, "ask", root.inner.Data["operation"])

	_, child := StartSpan(ctx, "RetrievalService.Retrieve", SpanAttributes{TopicID: "cells"})
	defer child.End()

	assert.Equal(t, root.inner.SpanID, child.inner.ParentSpanID)
	assert.Equal(t, root.inner.TraceID, child.inner.TraceID)
	assert.Equal(t, "cells", child.inner.Tags["topic_id"])
}

func TestSpan_SetError(t *testing.T) {
	_, span := StartSpan(context.Background(), "op", SpanAttributes{})
	defer span.End()

	span.SetError(nil)
	assert.NotEqual(t, sentry.SpanStatusInternalError, span.inner.Status)

	span.SetError(errors.New("boom"))
	assert.Equal(t, sentry.SpanStatusInternalError, span.inner.Status)

	var zero Span
	zero.SetError(errors.New("ignored"))
	zero.End()
}

func TestSampler(t *testing.T) {
	s := sampler(0.25)

	health := sentry.SamplingContext{Span: &sentry.Span{Name: "GET /health"}}
	assert.Equal(t, 0.0, s(health))

	root := sentry.SamplingContext{Span: &sentry.Span{Name: "POST /api/chat"}}
	assert.Equal(t, 0.25, s(root))

	sampledChild := sentry.SamplingContext{Span: &sentry.Span{ParentSpanID: sentry.SpanID{1}, Sampled: sentry.SampledTrue}}
	assert.Equal(t, 1.0, s(sampledChild))

	droppedChild := sentry.SamplingContext{Span: &sentry.Span{ParentSpanID: sentry.SpanID{1}, Sampled: sentry.SampledFalse}}
	assert.Equal(t, 0.0, s(droppedChild))
}
