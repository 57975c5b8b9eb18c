package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ChannelOutcomes is a slice of ChannelOutcome that implements sql.Scanner
// and driver.Valuer for JSONB column storage on the sent_alerts table.
type ChannelOutcomes []ChannelOutcome

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (o *ChannelOutcomes) Scan(value interface{}) error {
	if value == nil {
		*o = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("channel outcomes: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, o)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (o ChannelOutcomes) Value() (driver.Value, error) {
	if o == nil {
		return nil, nil
	}
	return json.Marshal(o)
}
