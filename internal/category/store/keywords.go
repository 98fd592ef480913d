package store

import (
	"encoding/json"
	"fmt"
)

// Keywords are stored as a JSONB array; match order must survive the round
// trip.

func encodeKeywords(keywords []string) ([]byte, error) {
	if keywords == nil {
		keywords = []string{}
	}

	encoded, err := json.Marshal(keywords)
	if err != nil {
		return nil, fmt.Errorf("encoding keywords: %w", err)
	}

	return encoded, nil
}

func decodeKeywords(data []byte, dst *[]string) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding keywords: %w", err)
	}

	return nil
}
