package runpod

import "fmt"

// APIError は RunPod が 2xx 以外を返した場合のエラーです
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("runpod: status=%d: %s", e.Status, e.Body)
}
