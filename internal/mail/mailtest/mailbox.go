// Package mailtest provides an in-memory mail.Provider for tests.
package mailtest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/MrSnakeDoc/mailmarks/internal/mail"
)

// Mailbox is an in-memory provider. Labels are created on demand and
// messages are listed in insertion order.
type Mailbox struct {
	mu       sync.Mutex
	order    []string
	messages map[string]*mail.Message
	labels   map[string]string          // name -> id
	applied  map[string]map[string]bool // message id -> label ids

	// Injected failures.
	ListErr   error
	LabelErr  error
	GetErrs   map[string]error
	MarkErrs  map[string]error
	GetCalls  int
	MarkCalls int
	Closed    bool
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{
		messages: make(map[string]*mail.Message),
		labels:   make(map[string]string),
		applied:  make(map[string]map[string]bool),
		GetErrs:  make(map[string]error),
		MarkErrs: make(map[string]error),
	}
}

// Add stores msg under its ID.
func (m *Mailbox) Add(msg *mail.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.messages[msg.ID]; !ok {
		m.order = append(m.order, msg.ID)
	}
	m.messages[msg.ID] = msg
}

// ListUnprocessed implements mail.Provider.
func (m *Mailbox) ListUnprocessed(_ context.Context, excludeLabel string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}

	labelID := m.labels[excludeLabel]
	ids := make([]string, 0, len(m.order))
	for _, id := range m.order {
		if labelID != "" && m.applied[id][labelID] {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// GetMessage implements mail.Provider.
func (m *Mailbox) GetMessage(_ context.Context, id string) (*mail.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls++
	if err := m.GetErrs[id]; err != nil {
		return nil, err
	}
	msg, ok := m.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s not found", id)
	}
	return msg, nil
}

// EnsureLabel implements mail.Provider.
func (m *Mailbox) EnsureLabel(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.LabelErr != nil {
		return "", m.LabelErr
	}
	if id, ok := m.labels[name]; ok {
		return id, nil
	}
	id := fmt.Sprintf("Label_%d", len(m.labels)+1)
	m.labels[name] = id
	return id, nil
}

// MarkProcessed implements mail.Provider.
func (m *Mailbox) MarkProcessed(_ context.Context, messageID, labelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.MarkCalls++
	if err := m.MarkErrs[messageID]; err != nil {
		return err
	}
	if _, ok := m.messages[messageID]; !ok {
		return fmt.Errorf("message %s not found", messageID)
	}
	if m.applied[messageID] == nil {
		m.applied[messageID] = make(map[string]bool)
	}
	m.applied[messageID][labelID] = true
	return nil
}

// Close implements mail.Provider.
func (m *Mailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Closed = true
	return nil
}

// Labelled returns the IDs of messages carrying the label called name, sorted.
func (m *Mailbox) Labelled(name string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	labelID, ok := m.labels[name]
	if !ok {
		return nil
	}
	var ids []string
	for id, labels := range m.applied {
		if labels[labelID] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// TextMessage builds a single-part text/plain message.
func TextMessage(id, subject, date, from, body string) *mail.Message {
	var headers []mail.Header
	if subject != "" {
		headers = append(headers, mail.Header{Name: "Subject", Value: subject})
	}
	if date != "" {
		headers = append(headers, mail.Header{Name: "Date", Value: date})
	}
	if from != "" {
		headers = append(headers, mail.Header{Name: "From", Value: from})
	}
	return &mail.Message{
		ID:      id,
		Headers: headers,
		Payload: mail.Part{
			MimeType: "text/plain",
			Data:     mail.EncodeData([]byte(body)),
		},
	}
}

var _ mail.Provider = (*Mailbox)(nil)
