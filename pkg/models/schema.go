package models

import (
	"encoding/json"
	"fmt"
)

// DecodeRawRecord parses an input payload. It fails when the body is not a
// JSON object or when id, user_id, text or timestamp has the wrong JSON type;
// unknown fields are ignored. A non-string type keeps its JSON text (5 becomes
// "5") so it is rejected later as an unknown type rather than here.
func DecodeRawRecord(body []byte) (RawRecord, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return RawRecord{}, fmt.Errorf("payload is not a JSON object: %w", err)
	}
	if fields == nil {
		return RawRecord{}, fmt.Errorf("payload is null")
	}

	var rec RawRecord
	var err error
	if rec.ID, err = decodeID(fields["id"]); err != nil {
		return RawRecord{}, err
	}
	rec.Type = looseString(fields["type"])

	for name, dst := range map[string]**string{
		"user_id":   &rec.UserID,
		"text":      &rec.Text,
		"timestamp": &rec.Timestamp,
	} {
		raw, ok := fields[name]
		if !ok || isNull(raw) {
			continue
		}
		s, err := optionalString(name, raw)
		if err != nil {
			return RawRecord{}, err
		}
		*dst = &s
	}

	return rec, nil
}

// PeekID extracts the record id without fully decoding the payload. It
// returns "" when the body is not decodable.
func PeekID(body []byte) string {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	id, _ := decodeID(probe.ID)
	return id
}

// decodeID accepts a string or a JSON number; numbers keep their literal form.
func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || isNull(raw) {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}

	return "", fmt.Errorf("field 'id' must be a string or number")
}

func optionalString(name string, raw json.RawMessage) (string, error) {
	if len(raw) == 0 || isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("field '%s' must be a string", name)
	}
	return s, nil
}

func looseString(raw json.RawMessage) string {
	if len(raw) == 0 || isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
