package queue

// MessageQueue is the transport under the fabric adapter. Delivery is
// at-least-once in both directions.
type MessageQueue interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte) error) error
	IsConnected() bool
	Close() error
}
