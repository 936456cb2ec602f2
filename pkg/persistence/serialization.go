package persistence

import (
	"encoding/json"
	"fmt"
	"sort"
)

// MarshalStoredCheque serializes a StoredCheque to JSON bytes.
func MarshalStoredCheque(sc *StoredCheque) ([]byte, error) {
	if sc == nil {
		return nil, fmt.Errorf("cannot marshal nil StoredCheque")
	}

	data, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal StoredCheque to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalStoredCheque deserializes a StoredCheque from JSON bytes and decodes
// the embedded cheque, rejecting entries whose content no longer matches the key.
func UnmarshalStoredCheque(data []byte) (*StoredCheque, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var sc StoredCheque
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to StoredCheque: %w", err)
	}
	if err := sc.restore(); err != nil {
		return nil, fmt.Errorf("corrupt stored cheque: %w", err)
	}

	return &sc, nil
}

// SortByDeadline orders cheques by deadline, then by key for a stable listing
func SortByDeadline(cheques []*StoredCheque) {
	sort.Slice(cheques, func(i, j int) bool {
		if cheques[i].Deadline != cheques[j].Deadline {
			return cheques[i].Deadline < cheques[j].Deadline
		}
		return cheques[i].Key.Hex() < cheques[j].Key.Hex()
	})
}
