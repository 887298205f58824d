package courier

import (
	"strings"
)

// StatusTable maps provider status strings (lower-cased) to canonical
// statuses. Provider tables are composed over the base table rather than
// inherited.
type StatusTable map[string]ShipmentStatus

// BaseStatusTable returns the status terms shared across providers.
func BaseStatusTable() StatusTable {
	return StatusTable{
		"delivered":  StatusDelivered,
		"in_transit": StatusInTransit,
		"pending":    StatusPending,
		"returned":   StatusReturned,
		"failed":     StatusFailed,
	}
}

// Merge returns a new table with override entries layered over t.
// Neither input is modified.
func (t StatusTable) Merge(override StatusTable) StatusTable {
	merged := make(StatusTable, len(t)+len(override))
	for k, v := range t {
		merged[strings.ToLower(k)] = v
	}
	for k, v := range override {
		merged[strings.ToLower(k)] = v
	}
	return merged
}

// Lookup resolves a provider status string case-insensitively. Unmapped
// input yields StatusUnknown, never an error.
func (t StatusTable) Lookup(courierStatus string) ShipmentStatus {
	if s, ok := t[strings.ToLower(courierStatus)]; ok {
		return s
	}
	return StatusUnknown
}
