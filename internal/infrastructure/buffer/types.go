package buffer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationJoin   = "join"
	OperationDelete = "delete"
)

// Item represents a remote write that failed and waits to be replayed.
type Item struct {
	ID           string          `json:"id"`
	CampaignID   string          `json:"campaign_id"`
	Operation    string          `json:"operation"`
	LocalVersion int64           `json:"local_version"`
	Data         json.RawMessage `json:"data"`
	Priority     int             `json:"priority"`
	Retries      int             `json:"retries"`
	Timestamp    time.Time       `json:"timestamp"`

	bucketKey []byte
}

// operationPriority orders replay so a campaign exists remotely before it is
// mutated and is mutated before it is deleted.
func operationPriority(op string) int {
	switch op {
	case OperationCreate:
		return 1
	case OperationUpdate, OperationJoin:
		return 2
	case OperationDelete:
		return 3
	default:
		return 4
	}
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Priority <= 0 || i.Priority > 5 {
		i.Priority = operationPriority(i.Operation)
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
