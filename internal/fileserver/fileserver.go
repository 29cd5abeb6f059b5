// Package fileserver answers one request line per connection with a static
// document and a minimal status line + Content-Length response.
package fileserver

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/jzx17/gopool/pkg/types"
	"github.com/sirupsen/logrus"
)

// Status lines written by the handler
const (
	StatusOK            = "HTTP/1.1 200 OK"
	StatusNotFound      = "HTTP/1.1 404 NOT FOUND"
	StatusInternalError = "HTTP/1.1 500 INTERNAL SERVER ERROR"
)

// Documents served from the document root
const (
	DocHello    = "hello.html"
	DocNotFound = "404.html"
)

// ErrEmptyRequest is returned when the peer closes without sending a line
var ErrEmptyRequest = errors.New("empty request")

// Route maps one exact request line to a response
type Route struct {
	RequestLine string
	Status      string
	Document    string
	// Delay makes the handler sleep for the configured SleepDelay first
	Delay bool
}

// DefaultRoutes is the fixed route table
var DefaultRoutes = []Route{
	{RequestLine: "GET / HTTP/1.1", Status: StatusOK, Document: DocHello},
	{RequestLine: "GET /sleep HTTP/1.1", Status: StatusOK, Document: DocHello, Delay: true},
}

// NotFoundRoute answers every request line without a matching route
var NotFoundRoute = Route{Status: StatusNotFound, Document: DocNotFound}

// Config configures a Handler
type Config struct {
	// Docs is the document root
	Docs fs.FS

	// Routes defaults to DefaultRoutes
	Routes []Route

	// SleepDelay is applied to routes with Delay set
	SleepDelay time.Duration

	// Clock for time operations (optional, defaults to real clock)
	Clock types.Clock

	Logger logrus.FieldLogger
}

// Handler serves a single request per connection
type Handler struct {
	docs       fs.FS
	routes     map[string]Route
	sleepDelay time.Duration
	clock      types.Clock
	logger     logrus.FieldLogger
}

// NewHandler creates a Handler
func NewHandler(config *Config) (*Handler, error) {
	if config == nil || config.Docs == nil {
		return nil, errors.New("fileserver: document root is required")
	}

	routes := config.Routes
	if routes == nil {
		routes = DefaultRoutes
	}

	h := &Handler{
		docs:       config.Docs,
		routes:     make(map[string]Route, len(routes)),
		sleepDelay: config.SleepDelay,
		clock:      config.Clock,
		logger:     config.Logger,
	}
	for _, r := range routes {
		h.routes[r.RequestLine] = r
	}
	if h.clock == nil {
		h.clock = types.NewRealClock()
	}
	if h.logger == nil {
		h.logger = logrus.StandardLogger()
	}
	return h, nil
}

// Match returns the route for requestLine
func (h *Handler) Match(requestLine string) Route {
	if r, ok := h.routes[requestLine]; ok {
		return r
	}
	return NotFoundRoute
}

// ServeConn reads one request line from rw and writes the response.
// It does not close rw.
func (h *Handler) ServeConn(rw io.ReadWriter) error {
	line, err := readRequestLine(rw)
	if err != nil {
		return err
	}

	route := h.Match(line)
	h.logger.WithFields(logrus.Fields{
		"request_line": line,
		"status":       route.Status,
	}).Info("request")

	if route.Delay && h.sleepDelay > 0 {
		h.clock.Sleep(h.sleepDelay)
	}

	contents, err := fs.ReadFile(h.docs, route.Document)
	if err != nil {
		if _, werr := rw.Write(FormatResponse(StatusInternalError, nil)); werr != nil {
			return fmt.Errorf("write error response: %w", werr)
		}
		return fmt.Errorf("read document %s: %w", route.Document, err)
	}

	if _, err := rw.Write(FormatResponse(route.Status, contents)); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

// FormatResponse renders the status line, Content-Length header and body
func FormatResponse(status string, body []byte) []byte {
	head := fmt.Sprintf("%s\r\nContent-Length: %d\r\n\r\n", status, len(body))
	return append([]byte(head), body...)
}

func readRequestLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", ErrEmptyRequest
		}
		return "", fmt.Errorf("read request line: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
