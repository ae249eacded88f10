package amqp

import (
	"encoding/json"
	"time"
)

// ChangeEvent tells other processes that a ledger collection changed.
// It carries no entry data; consumers re-list their own store. Origin
// identifies the publishing process so it can ignore its own echoes.
type ChangeEvent struct {
	Path      string    `json:"path"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChangeEvent(path, origin string) *ChangeEvent {
	return &ChangeEvent{
		Path:      path,
		Origin:    origin,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ChangeEventFromJSON creates an event from JSON bytes
func ChangeEventFromJSON(data []byte) (*ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
