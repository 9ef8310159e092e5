// Package rtm is a client for the Slack Real Time Messaging API: one
// long-lived websocket carrying JSON events, bootstrapped by an rtm.connect
// (or rtm.start) Web API call that hands out a single-use URL.
//
// A Session owns the connection. It bootstraps, dials, reads frames and
// dispatches them to handlers bound by event type, and reconnects with a
// jittered exponential backoff (capped at 300s, overridden by Retry-After)
// when the stream breaks.
//
// Events:
//   - wire frames are dispatched under their "type" ("message", "hello", ...);
//     frames without one go to "Unknown", frames with a non-string one are
//     dropped.
//   - "open" fires after every successful connect with the bootstrap response.
//   - "error" fires on every failed attempt, with the failure in Event.Err.
//   - "close" fires once per Start, after the websocket is gone.
//
// Handlers run on the read goroutine. A handler error (or panic) stops the
// session and comes back from Start as *CallbackError.
//
// Handlers live in a Registry. The package-level On / OnFunc / MustOn use
// DefaultRegistry, which every Session reads unless WithRegistry says
// otherwise.
//
// Example:
//
//	var _ = rtm.MustOn(rtm.EventMessage, func(ctx context.Context, ev *rtm.Event) error {
//		if ev.Data.String("text") == "ping" {
//			return ev.RTM.SendMessage(ev.Data.String("channel"), "pong")
//		}
//		return nil
//	})
//
//	func main() {
//		s := rtm.New(os.Getenv("SLACK_BOT_TOKEN"))
//		if err := s.Start(context.Background()); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The blocking Start turns SIGHUP, SIGTERM and SIGINT into Stop unless
// WithSignalHandling(false) is given. StartAsync never touches signals.
package rtm
