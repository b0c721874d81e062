package errors

import "encoding/json"

// jsonError is the single-object shape every CLI error surfaces as.
type jsonError struct {
	Error    string            `json:"error"`
	Code     string            `json:"code,omitempty"`
	Details  map[string]string `json:"details,omitempty"`
}

// FormatJSON renders err as the {"error": ...} object the CLI surface
// requires. Non-ReconError values are wrapped under ErrCodeInternal first.
func FormatJSON(err error) []byte {
	if err == nil {
		return nil
	}
	re, ok := err.(*ReconError)
	if !ok {
		re = Wrap(ErrCodeInternal, err)
	}
	data, marshalErr := json.Marshal(jsonError{
		Error:   re.Message,
		Code:    re.Code,
		Details: re.Details,
	})
	if marshalErr != nil {
		return []byte(`{"error":"` + re.Message + `"}`)
	}
	return data
}
