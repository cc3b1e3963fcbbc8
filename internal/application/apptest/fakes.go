// Package apptest holds in-memory stand-ins for the ports the use cases
// depend on.
package apptest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Zhima-Mochi/storefront-bot/internal/domain/identity"
	"github.com/Zhima-Mochi/storefront-bot/internal/domain/messaging"
	domoutbox "github.com/Zhima-Mochi/storefront-bot/internal/domain/outbox"
)

// Sent is one message recorded by Messenger.
type Sent struct {
	Op      string
	Target  string
	Message messaging.Message
}

// Messenger records everything it is asked to send. Per-target errors can be
// injected through DirectErr and PostErr.
type Messenger struct {
	mu        sync.Mutex
	seq       int
	sent      []Sent
	closed    []string
	DirectErr map[string]error
	PostErr   map[string]error
	EditErr   error
	Roles     map[string][]string
}

func NewMessenger() *Messenger {
	return &Messenger{DirectErr: map[string]error{}, PostErr: map[string]error{}, Roles: map[string][]string{}}
}

func (m *Messenger) record(op, target string, msg messaging.Message) {
	m.sent = append(m.sent, Sent{Op: op, Target: target, Message: msg})
}

func (m *Messenger) SendDirect(_ context.Context, userID string, msg messaging.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.DirectErr[userID]; err != nil {
		return err
	}
	m.record("dm", userID, msg)
	return nil
}

func (m *Messenger) Post(_ context.Context, channelID string, msg messaging.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.PostErr[channelID]; err != nil {
		return "", err
	}
	m.seq++
	m.record("post", channelID, msg)
	return fmt.Sprintf("msg-%d", m.seq), nil
}

func (m *Messenger) Edit(_ context.Context, channelID, messageID string, msg messaging.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EditErr != nil {
		return m.EditErr
	}
	m.record("edit", channelID+"/"+messageID, msg)
	return nil
}

func (m *Messenger) OpenPrivateSurface(_ context.Context, name string, _ []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := fmt.Sprintf("surface-%d", m.seq)
	m.record("open", name, messaging.Message{})
	return id, nil
}

func (m *Messenger) CloseSurface(_ context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = append(m.closed, channelID)
	return nil
}

func (m *Messenger) HasRole(_ context.Context, _, userID, roleID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.Roles[userID] {
		if r == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Messenger) Reply(_ context.Context, interactionID string, msg messaging.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("reply", interactionID, msg)
	return nil
}

// Sent returns recorded messages of op, or all when op is empty.
func (m *Messenger) Sent(op string) []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Sent
	for _, s := range m.sent {
		if op == "" || s.Op == op {
			out = append(out, s)
		}
	}
	return out
}

func (m *Messenger) Closed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.closed...)
}

// Publisher records published events.
type Publisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *Publisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *Publisher) Events() []domoutbox.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domoutbox.Event(nil), p.events...)
}

// Count returns how many events named name were published.
func (p *Publisher) Count(name string) int {
	n := 0
	for _, e := range p.Events() {
		if e.EventName() == name {
			n++
		}
	}
	return n
}

// Lookup fails with Errs in order, then succeeds with Profile.
type Lookup struct {
	mu      sync.Mutex
	Errs    []error
	Profile identity.Profile
	Calls   int
}

func (l *Lookup) Lookup(_ context.Context, cpf string) (identity.Profile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Calls++
	if len(l.Errs) > 0 {
		err := l.Errs[0]
		l.Errs = l.Errs[1:]
		return identity.Profile{}, err
	}
	p := l.Profile
	p.CPF = cpf
	return p, nil
}

// Eventually polls cond until it holds or d elapses.
func Eventually(d time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
