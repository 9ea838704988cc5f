// Package http provides the HTTP clients used to reach external services.
//
// # Client
//
// Client is a thin wrapper around net/http with a fixed User-Agent:
//
//	client := http.NewClient("")
//	cover, err := client.Fetch(ctx, coverURL)
//
// # RateLimitedClient
//
// RateLimitedClient calls named endpoints and spaces consecutive calls to the
// same endpoint by a configured minimum interval:
//
//	rl := http.NewRateLimitedClient(client, logger)
//	rl.Register("lrclib", "https://lrclib.net", 0)
//	resp, err := rl.Call(ctx, "lrclib", "/api/get", params)
//	if errors.Is(err, http.ErrUnavailable) {
//	    // non-2xx status or transport failure; no retry was attempted
//	}
package http
