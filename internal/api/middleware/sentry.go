package middleware

import (
	"net/http"

	"github.com/getsentry/sentry-go"
)

var spanStatusByHTTP = map[int]sentry.SpanStatus{
	http.StatusUnauthorized:          sentry.SpanStatusUnauthenticated,
	http.StatusNotFound:              sentry.SpanStatusNotFound,
	http.StatusConflict:              sentry.SpanStatusAborted,
	http.StatusRequestEntityTooLarge: sentry.SpanStatusResourceExhausted,
	http.StatusTooManyRequests:       sentry.SpanStatusResourceExhausted,
	http.StatusServiceUnavailable:    sentry.SpanStatusUnavailable,
	http.StatusGatewayTimeout:        sentry.SpanStatusDeadlineExceeded,
}

func spanStatus(code int) sentry.SpanStatus {
	if s, ok := spanStatusByHTTP[code]; ok {
		return s
	}
	switch code / 100 {
	case 2, 3:
		return sentry.SpanStatusOK
	case 4:
		return sentry.SpanStatusInvalidArgument
	case 5:
		return sentry.SpanStatusInternalError
	}
	return sentry.SpanStatusUnknown
}

// SentryMiddleware runs each request inside a transaction on its own hub,
// continuing an upstream trace when sentry-trace is present. Panics are
// reported and re-raised; 5xx responses are captured as messages.
func SentryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}

		opts := []sentry.SpanOption{
			sentry.WithOpName("http.server"),
			sentry.WithTransactionSource(sentry.SourceRoute),
		}
		if trace := r.Header.Get(sentry.SentryTraceHeader); trace != "" {
			opts = append(opts, sentry.ContinueFromHeaders(trace, r.Header.Get(sentry.SentryBaggageHeader)))
		}
		tx := sentry.StartTransaction(r.Context(), r.Method+" "+r.URL.Path, opts...)
		defer tx.Finish()

		hub.Scope().SetRequest(r)
		if id := GetRequestID(r.Context()); id != "" {
			tx.SetTag("request_id", id)
		}
		if learner := r.Header.Get(UserIDHeader); learner != "" {
			hub.Scope().SetUser(sentry.User{ID: learner})
			tx.SetTag("user_id", learner)
		}

		r = r.WithContext(sentry.SetHubOnContext(tx.Context(), hub))
		defer func() {
			if p := recover(); p != nil {
				tx.Status = sentry.SpanStatusInternalError
				hub.RecoverWithContext(r.Context(), p)
				panic(p)
			}
		}()

		ww := wrap(w, r)
		next.ServeHTTP(ww, r)

		if pattern := routePattern(r); pattern != "" {
			tx.Name = r.Method + " " + pattern
		}
		code := statusOf(ww)
		tx.Status = spanStatus(code)
		tx.SetData("http.response.status_code", code)
		if code >= http.StatusInternalServerError {
			hub.CaptureMessage(http.StatusText(code) + ": " + tx.Name)
		}
	})
}
