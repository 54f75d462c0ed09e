package registry

import (
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mapsign/mapsign/internal/requestutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonLogEntry represents an access log entry in JSON format.
type jsonLogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	RemoteAddr string    `json:"remote_addr"`
	Host       string    `json:"host"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	Size       int       `json:"size"`
	Duration   float64   `json:"duration_seconds"`
	Referer    string    `json:"referer,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
}

// jsonLogFormatterParams holds the parameters required for JSON logging.
type jsonLogFormatterParams struct {
	Request   *http.Request
	URL       *url.URL
	Timestamp time.Time
	Duration  time.Duration
	Status    int
	Size      int
}

// responseLogger records the status and size of the response passing
// through it.
type responseLogger struct {
	http.ResponseWriter
	status int
	size   int
}

func (l *responseLogger) Write(p []byte) (int, error) {
	if l.status == 0 {
		l.status = http.StatusOK
	}
	size, err := l.ResponseWriter.Write(p)
	l.size += size
	return size, err
}

func (l *responseLogger) WriteHeader(status int) {
	if l.status == 0 {
		l.status = status
	}
	l.ResponseWriter.WriteHeader(status)
}

func (l *responseLogger) Flush() {
	if flusher, ok := l.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (l *responseLogger) Status() int {
	if l.status == 0 {
		return http.StatusOK
	}
	return l.status
}

func (l *responseLogger) Size() int {
	return l.size
}

func makeLogger(w http.ResponseWriter) *responseLogger {
	return &responseLogger{ResponseWriter: w}
}

// writeJSONCombinedLog writes a log entry for req to w in JSON format similar to Combined Log Format.
func writeJSONCombinedLog(enc *jsoniter.Encoder, params jsonLogFormatterParams) {
	_ = enc.Encode(&jsonLogEntry{
		Timestamp:  params.Timestamp.UTC(),
		RemoteAddr: requestutil.RemoteIP(params.Request),
		Host:       params.Request.Host,
		Method:     params.Request.Method,
		Path:       params.URL.Path,
		Status:     params.Status,
		Size:       params.Size,
		Duration:   params.Duration.Seconds(),
		Referer:    params.Request.Referer(),
		UserAgent:  params.Request.UserAgent(),
	})
}

// JSONLoggingHandler returns a http.Handler that wraps h and logs requests in JSON
// format similar to Combined Log Format.
func JSONLoggingHandler(out io.Writer, h http.Handler) http.Handler {
	var mu sync.Mutex // guards enc
	enc := json.NewEncoder(out)
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		logger := makeLogger(w)
		u := *req.URL

		h.ServeHTTP(logger, req)

		params := jsonLogFormatterParams{
			Request:   req,
			URL:       &u,
			Timestamp: start,
			Duration:  time.Since(start),
			Status:    logger.Status(),
			Size:      logger.Size(),
		}

		mu.Lock()
		writeJSONCombinedLog(enc, params)
		mu.Unlock()
	})
}
