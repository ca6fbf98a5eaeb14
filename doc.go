// Package relay is the Go client for the Relay request-execution service.
//
// A Step describes one HTTP call plus optional fallback branches,
// success/failure continuations, webhook delivery, multi-region hints, and a
// deduplication strategy. An Executor either runs the call on the caller's
// machine and walks fallbacks in declared order (Frugal mode), or compiles
// the whole tree into a single nested JobDescription and submits it
// (Performance mode). The service performs region racing, retry/reroute, and
// webhook fan-out; this client only describes that behavior.
//
//	client, _ := relay.NewClient(relay.ClientConfig{APIKey: "rk_..."}, nil)
//	ex := relay.NewExecutor(nil, client)
//
//	backup := relay.NewStep().URL("https://eu.example.com/charge").Method("POST")
//	out, err := ex.Execute(ctx, relay.NewStep().
//	    URL("https://us.example.com/charge").
//	    Method("POST").
//	    Body(`{"amount":1099}`).
//	    Fallback(backup, relay.OnErrorCodes(500, 503)))
//
// Inbound webhook deliveries are verified with the webhook subpackage.
package relay
