package vault

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// reservedKeys could alter object prototypes if a record set were
// rehydrated by a JavaScript host, so they are never accepted
var reservedKeys = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

// Record is one stored item
type Record struct {
	Value json.RawMessage `json:"value"`
	// Expiry is an absolute Unix millisecond timestamp.
	// nil means the record never expires.
	Expiry *int64 `json:"expiry"`
}

// expired reports whether the record is logically absent at now.
// A record expires at its expiry instant, not after it.
func (record Record) expired(now int64) bool {
	return record.Expiry != nil && *record.Expiry <= now
}

// RecordSet is the unit of persistence: every record a vault holds
type RecordSet map[string]Record

func (records RecordSet) clone() RecordSet {
	clone := make(RecordSet, len(records))

	for key, record := range records {
		clone[key] = record
	}

	return clone
}

// removeExpired deletes every record expired at now and
// returns how many were deleted
func (records RecordSet) removeExpired(now int64) int {
	removed := 0

	for key, record := range records {
		if record.expired(now) {
			delete(records, key)
			removed++
		}
	}

	return removed
}

// ValidateKey returns ErrInvalidKey if key cannot be stored
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: key must not be empty or whitespace", ErrInvalidKey)
	}

	if reservedKeys[key] {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidKey, key)
	}

	return nil
}

// ceilMillis converts d to milliseconds, rounding up so that a positive
// duration always moves an expiry forward
func ceilMillis(d time.Duration) int64 {
	ms := d.Milliseconds()

	if time.Duration(ms)*time.Millisecond < d {
		ms++
	}

	return ms
}

func expiryAt(ms int64) *int64 {
	return &ms
}

func encodeValue(value interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(value)

	if err != nil {
		return nil, encodeError(err)
	}

	return raw, nil
}

// decodeRecordSet parses persisted plain text. Anything but a JSON object
// of record objects is an error. Reserved keys are dropped.
func decodeRecordSet(text string) (RecordSet, []string, error) {
	var entries map[string]json.RawMessage

	if err := json.Unmarshal([]byte(text), &entries); err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrCorrupted, err)
	}

	if entries == nil {
		return nil, nil, fmt.Errorf("%w: record set is null", ErrCorrupted)
	}

	records := make(RecordSet, len(entries))
	dropped := []string{}

	for key, entry := range entries {
		if !isObject(entry) {
			return nil, nil, fmt.Errorf("%w: record %q is not an object", ErrCorrupted, key)
		}

		if ValidateKey(key) != nil {
			dropped = append(dropped, key)

			continue
		}

		var record Record

		if err := json.Unmarshal(entry, &record); err != nil {
			return nil, nil, fmt.Errorf("%w: record %q: %s", ErrCorrupted, key, err)
		}

		if record.Value == nil {
			record.Value = json.RawMessage("null")
		}

		records[key] = record
	}

	return records, dropped, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)

	return len(trimmed) > 0 && trimmed[0] == '{'
}
