package chat

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// snapshot is the serialized form of a session, enough to resume the
// conversation elsewhere.
type snapshot struct {
	State State         `json:"state"`
	Order *OrderContext `json:"order"`
}

// Snapshot serializes the state and cart of a session.
func (m *Manager) Snapshot(contextID string) ([]byte, error) {
	if contextID == "" {
		return nil, errors.New("empty context id")
	}
	session := m.sessions.Acquire(contextID)
	defer m.sessions.Release(session)
	return json.Marshal(snapshot{State: session.State, Order: session.Order})
}

// Restore loads a serialized session into the registry under contextID,
// creating the session if needed.
func (m *Manager) Restore(contextID string, data []byte) error {
	if contextID == "" {
		return errors.New("empty context id")
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return errors.Wrap(err, "decode session snapshot")
	}
	if snap.Order == nil {
		snap.Order = NewOrderContext()
	}
	if _, ok := ParseState(string(snap.State)); !ok {
		return errors.Errorf("unknown state %q", snap.State)
	}
	session := m.sessions.Acquire(contextID)
	defer m.sessions.Release(session)
	session.State = snap.State
	session.Order = snap.Order
	return nil
}
