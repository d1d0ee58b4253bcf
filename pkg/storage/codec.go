package storage

import "encoding/json"

// envelope wraps a mutable record with the version CompareAndSet checks.
// Version starts at 1 on first write and increments on every update.
type envelope struct {
	Version uint64          `json:"version"`
	Data    json.RawMessage `json:"data"`
}

func encodeEnvelope(version uint64, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Version: version, Data: data})
}

func decodeEnvelope(raw []byte, v any) (uint64, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return 0, err
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return 0, err
	}
	return env.Version, nil
}
