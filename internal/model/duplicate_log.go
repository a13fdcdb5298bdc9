package model

import "time"

// EntityDocument is the entity type recorded for duplicate document numbers.
const EntityDocument = "DOCUMENT"

// DuplicateLogEntry records a rejected attempt to store a non-unique business key.
type DuplicateLogEntry struct {
	EntityType     string    `json:"entity_type"`
	DuplicateValue string    `json:"duplicate_value"`
	Context        string    `json:"context"`
	Timestamp      time.Time `json:"timestamp"`
}
