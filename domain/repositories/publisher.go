package repositories

// Publisher fans a notification out to every connected observer.
// Delivery is synchronous, best-effort and in calling order; observers
// that are not open are skipped.
type Publisher interface {
	Publish(eventType string, data any)
}
