package amqp

import (
	"encoding/json"
	"time"
)

// ImportCompletedMessage announces that an upload batch has been persisted.
// The alert worker re-reads the records from storage, so the message only
// carries the batch metadata.
type ImportCompletedMessage struct {
	FilesProcessed  int       `json:"files_processed"`
	RecordsImported int       `json:"records_imported"`
	Timestamp       time.Time `json:"timestamp"`
}

func NewImportCompletedMessage(filesProcessed, recordsImported int) *ImportCompletedMessage {
	return &ImportCompletedMessage{
		FilesProcessed:  filesProcessed,
		RecordsImported: recordsImported,
		Timestamp:       time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *ImportCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ImportCompletedMessageFromJSON creates a message from JSON bytes.
func ImportCompletedMessageFromJSON(data []byte) (*ImportCompletedMessage, error) {
	var msg ImportCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
