package outbox

// Kafka topic names equal the event type (event per topic).
const (
	EventBookingCreated   = "calendar.booking.created.v1"
	EventBookingCancelled = "calendar.booking.cancelled.v1"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
