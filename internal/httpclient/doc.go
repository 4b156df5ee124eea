// Package httpclient provides the request primitives shared by every
// flexibility connector.
//
// The httpclient package handles URL composition and HTTP exchange with support for:
//   - Positional request URLs (route, cache-buster token, flex reference, query)
//   - The X-CSRF-Token double-submit handshake
//   - Status classification and JSON body materialization
//   - Tracing spans and latency recording per exchange
//   - Optional request rate limiting shared by derived senders
//
// # URL Building
//
// Use [BuildURL] to compose the URL a connector talks to:
//
//	target, err := httpclient.BuildURL("/flex/data/", httpclient.URLBase{
//		URL:       "https://host",
//		Reference: "my.app",
//		CacheKey:  "abc",
//	}, map[string]string{"appVersion": "1.0.0"})
//
// # Sending Requests
//
// A [Sender] performs exactly one exchange per [Sender.SendRequest] call:
//
//	sender := httpclient.NewSender(httpclient.NewClient(30 * time.Second))
//	env, err := sender.SendRequest(ctx, target, http.MethodGet, nil)
//	if err != nil {
//		var statusErr *httpclient.StatusError
//		if errors.As(err, &statusErr) {
//			// statusErr.Status, statusErr.Message
//		}
//		return err
//	}
//	token := env.SecurityToken
//
// GET and HEAD requests without a known token ask the server for one by sending
// "fetch"; POST, PUT and DELETE requests echo a supplied token back.
//
// # Integration
//
// This package integrates with:
//   - [github.com/torosent/flexconnect/internal/tracing] for client spans
//   - [github.com/torosent/flexconnect/internal/metrics] for latency recording
package httpclient
