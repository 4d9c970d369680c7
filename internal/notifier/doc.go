// Package notifier delivers human-facing notifications.
//
// A notification is a single line of text. The service stamps it with the
// process name and local time, echoes it to the log, truncates it to the
// relay limit and hands it to every configured channel (GroupMe, Telegram)
// in order.
//
// # Delivery
//
// Notify is synchronous: it returns only after every channel was attempted,
// so two notifications are never in flight at once and their order is the
// call order. Delivery failures are logged and recorded, never returned and
// never retried; the watch loop must not stall on a flaky relay.
//
// # History
//
// For debugging and operator visibility, the service keeps a small in-memory
// history of recently emitted notifications.
package notifier
