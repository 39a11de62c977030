package sysprimscore

import (
	"bytes"
	"encoding/json"
	"time"
)

// DecodeStrict unmarshals JSON into dst, rejecting any key not present in
// dst's struct tags. Unknown keys must fail the call with
// ErrInvalidArgument rather than be silently ignored, so bindings can't
// invent incompatible extensions.
func DecodeStrict(data []byte, dst interface{}) error {
	if len(data) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return NewError(ErrInvalidArgument, "invalid JSON: %v", err)
	}
	return nil
}

// nowISO8601 returns the current instant as an ISO-8601 UTC string,
// millisecond resolution.
func nowISO8601() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}
