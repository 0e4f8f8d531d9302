package protocol

import "encoding/json"

// Marshal renders a wire message. Callers treat the result as an opaque
// blob; a failed encode yields a nil slice and the error.
func Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
