package httpx

import (
	"bytes"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/mbolis/quick-forms/fault"
)

var now = func() time.Time { return time.Now().UTC() }

type envelope struct {
	Success    bool                  `json:"success"`
	Kind       fault.Kind            `json:"kind,omitempty"`
	Message    string                `json:"message"`
	Timestamp  time.Time             `json:"timestamp"`
	Data       any                   `json:"data,omitempty"`
	Errors     []string              `json:"errors,omitempty"`
	Missing    []fault.MissingAnswer `json:"missing,omitempty"`
	RetryAfter int                   `json:"retryAfter,omitempty"`
	Details    string                `json:"details,omitempty"`
}

// Success sends data in the success envelope with status 200.
func Success(w http.ResponseWriter, r *http.Request, data any, msg string) {
	SuccessStatus(w, r, http.StatusOK, data, msg)
}

func SuccessStatus(w http.ResponseWriter, r *http.Request, status int, data any, msg string) {
	render.Status(r, status)
	render.JSON(w, r, envelope{
		Success:   true,
		Message:   msg,
		Timestamp: now(),
		Data:      data,
	})
}

// ResponseBuffer holds a response in memory, so that a handler's output can
// be inspected before it is sent.
type ResponseBuffer interface {
	http.ResponseWriter
	Status() int
	Body() []byte
	Flush(w http.ResponseWriter) error
}

type responseBuffer struct {
	status int
	header http.Header
	body   bytes.Buffer
}

func NewResponseBuffer() ResponseBuffer {
	return &responseBuffer{}
}

// Status defaults to 200 once something was written.
func (resp *responseBuffer) Status() int {
	if resp.status == 0 && resp.body.Len() > 0 {
		return http.StatusOK
	}
	return resp.status
}

func (resp *responseBuffer) Header() http.Header {
	if resp.header == nil {
		resp.header = http.Header{}
	}
	return resp.header
}

func (resp *responseBuffer) Body() []byte {
	return resp.body.Bytes()
}

func (resp *responseBuffer) Write(body []byte) (int, error) {
	return resp.body.Write(body)
}

func (resp *responseBuffer) WriteHeader(statusCode int) {
	if resp.status == 0 {
		resp.status = statusCode
	}
}

func (resp *responseBuffer) Flush(w http.ResponseWriter) error {
	header := w.Header()
	for key, value := range resp.header {
		header[key] = value
	}
	if resp.status != 0 {
		w.WriteHeader(resp.status)
	}
	if resp.body.Len() > 0 {
		_, err := w.Write(resp.body.Bytes())
		return err
	}
	return nil
}
