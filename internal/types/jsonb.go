package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Compile-time interface assertions. These catch method signature drift at
// compile time rather than at runtime. Scan is on pointer receivers; Value is
// on value receivers.
var (
	_ sql.Scanner   = (*SummaryData)(nil)
	_ driver.Valuer = SummaryData{}
)

// scanJSONB scans a JSONB database value into a Go pointer. It handles nil
// values, []byte, and string representations from different drivers.
func scanJSONB(dest any, value any) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// Scan implements sql.Scanner for reading the summary_data column.
func (d *SummaryData) Scan(value any) error {
	return scanJSONB(d, value)
}

// Value implements driver.Valuer for writing the summary_data column.
// encoding/json sorts map keys, so the stored document is byte-stable for a
// fixed set of readings - regeneration with identical inputs produces an
// identical column value.
func (d SummaryData) Value() (driver.Value, error) {
	return json.Marshal(d)
}
