package metrics

import (
	"net/http"
	"strconv"
	"time"
)

// OperationHeader names the request header carrying the operation label.
// It is stripped before the request leaves the process.
const OperationHeader = "X-Metrics-Operation"

// RequestWatcher is an http.RoundTripper that times provider calls.
// Responses with a 5xx status count as errors.
type RequestWatcher struct {
	name string
	next http.RoundTripper
}

func NewRequestWatcher(name string, next http.RoundTripper) *RequestWatcher {
	if next == nil {
		next = http.DefaultTransport
	}
	return &RequestWatcher{
		name: name,
		next: next,
	}
}

func (m *RequestWatcher) RoundTrip(r *http.Request) (*http.Response, error) {
	op := r.Header.Get(OperationHeader)
	if op == "" {
		op = r.Method
	} else {
		r = r.Clone(r.Context())
		r.Header.Del(OperationHeader)
	}

	var err error
	defer func(start time.Time) {
		CollectProviderRequest(m.name, op, err, start)
	}(time.Now())

	resp, err := m.next.RoundTrip(r)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		err = &statusError{code: resp.StatusCode}
	}
	return resp, nil
}

type statusError struct{ code int }

func (e *statusError) Error() string { return "status " + strconv.Itoa(e.code) }
