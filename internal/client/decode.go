package client

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kjstillabower/city-weather-service/internal/models"
)

// Decode parses a current.json payload. Unknown fields are ignored and
// omitted fields stay nil. A literal JSON null decodes to (nil, nil).
// Any other failure wraps ErrDecode.
func Decode(body []byte) (*models.WeatherResponse, error) {
	trimmed := bytes.TrimSpace(body)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var resp models.WeatherResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return &resp, nil
}
