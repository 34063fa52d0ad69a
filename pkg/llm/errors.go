package llm

import "fmt"

// HTTPError is a non-2xx reply from the upstream API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "llm http error"
	}
	if e.Body == "" {
		return fmt.Sprintf("llm http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("llm http error: status=%d body=%s", e.StatusCode, e.Body)
}
