package mocks

// MockMessageQueue is a mock implementation of MessageQueue interface
type MockMessageQueue struct {
	PublishedMessages map[string][][]byte
	Subscribers       map[string][]func([]byte) error
	Connected         bool
	PublishFunc       func(topic string, data []byte) error
	SubscribeFunc     func(topic string, handler func([]byte) error) error
	CloseFunc         func() error
}

func NewMockMessageQueue() *MockMessageQueue {
	return &MockMessageQueue{
		PublishedMessages: make(map[string][][]byte),
		Subscribers:       make(map[string][]func([]byte) error),
		Connected:         true,
	}
}

// Deliver pushes a message through every subscriber whose subject
// matches, as the broker would.
func (m *MockMessageQueue) Deliver(topic string, data []byte) error {
	for subject, handlers := range m.Subscribers {
		if !subjectMatches(subject, topic) {
			continue
		}
		for _, h := range handlers {
			if err := h(data); err != nil {
				return err
			}
		}
	}
	return nil
}

func subjectMatches(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	pp := splitSubject(pattern)
	tt := splitSubject(topic)
	if len(pp) != len(tt) {
		return false
	}
	for i := range pp {
		if pp[i] != "*" && pp[i] != tt[i] {
			return false
		}
	}
	return true
}

func splitSubject(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

func (m *MockMessageQueue) Publish(topic string, data []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(topic, data)
	}
	m.PublishedMessages[topic] = append(m.PublishedMessages[topic], data)
	return nil
}

func (m *MockMessageQueue) Subscribe(topic string, handler func([]byte) error) error {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(topic, handler)
	}
	m.Subscribers[topic] = append(m.Subscribers[topic], handler)
	return nil
}

func (m *MockMessageQueue) IsConnected() bool {
	return m.Connected
}

func (m *MockMessageQueue) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// GetPublishedMessages returns all messages published to a topic
func (m *MockMessageQueue) GetPublishedMessages(topic string) [][]byte {
	return m.PublishedMessages[topic]
}

// ClearMessages clears all published messages
func (m *MockMessageQueue) ClearMessages() {
	m.PublishedMessages = make(map[string][][]byte)
}
