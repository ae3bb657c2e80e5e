package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
)

const defaultTimeout = 30 * time.Second

// UnauthorizedError is returned for a 401 response, after the session reacted to it.
// Redirect is the login surface to show, empty when no namespace was logged in.
type UnauthorizedError struct {
	Redirect string
	Message  string
}

func (e *UnauthorizedError) Error() string {
	if e.Redirect == "" {
		return "unauthorized: " + e.Message
	}
	return fmt.Sprintf("unauthorized: %s (login again at %s)", e.Message, e.Redirect)
}

// APIError is any other non-2xx response. Code is set for machine readable rejections
// (e.g. "TOO_LARGE", "ASSIGNMENT_EXPIRED") and Fields for validation errors.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		msg = strings.Join(parts, "; ")
	}
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, msg)
}

// IsCode reports whether err is an APIError carrying code.
func IsCode(err error, code string) bool {
	if apiErr, ok := errors.Cause(err).(*APIError); ok {
		return apiErr.Code == code
	}
	return false
}

// Client talks to the department website API on behalf of the Session.
// Every request carries the token resolved by the session; failed requests are never retried.
type Client struct {
	baseURL string
	session *Session
	rest    rest.Client
}

// New returns a Client for the API rooted at baseURL (e.g. "http://localhost:8000/api").
// A nil httpClient gets a client with a default timeout.
func New(baseURL string, session *Session, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if session == nil {
		session = NewSession(nil)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		rest:    rest.Client{HTTPClient: httpClient},
	}
}

func (c *Client) Session() *Session { return c.session }

type request struct {
	method      rest.Method
	path        string
	query       url.Values
	body        interface{} // JSON encoded unless raw is set
	raw         []byte
	contentType string
}

// do sends req with the resolved bearer token and decodes a 2xx JSON body into out (when non-nil).
func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	endpoint := c.baseURL + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}
	r := rest.Request{
		Method:  req.method,
		BaseURL: endpoint,
		Headers: map[string]string{"Accept": "application/json"},
	}

	switch {
	case req.raw != nil:
		r.Body = req.raw
		r.Headers["Content-Type"] = req.contentType
	case req.body != nil:
		data, err := json.Marshal(req.body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		r.Body = data
		r.Headers["Content-Type"] = "application/json"
	}

	token, _, ok, err := c.session.ResolveToken()
	if err != nil {
		return err
	}
	if ok {
		r.Headers["Authorization"] = "Bearer " + token
	}

	resp, err := c.rest.SendWithContext(ctx, r)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.method, req.path)
	}
	return c.handleResponse(resp, out)
}

func (c *Client) handleResponse(resp *rest.Response, out interface{}) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent || resp.Body == "" {
			return nil
		}
		return errors.Wrap(json.Unmarshal([]byte(resp.Body), out), "decoding response")
	}

	apiErr := parseAPIError(resp)
	if resp.StatusCode == http.StatusUnauthorized {
		redirect, err := c.session.OnUnauthorized()
		if err != nil {
			return err
		}
		return &UnauthorizedError{Redirect: redirect, Message: apiErr.Message}
	}
	return apiErr
}

// parseAPIError understands the error bodies of the API:
// {"error": "msg"}, {"error": "msg", "code": "CODE"} and {"field": "msg", ...}.
func parseAPIError(resp *rest.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var body map[string]interface{}
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		if txt := strings.TrimSpace(resp.Body); txt != "" {
			apiErr.Message = txt
		}
		return apiErr
	}

	msg, hasMsg := body["error"].(string)
	if hasMsg {
		apiErr.Message = msg
		if code, ok := body["code"].(string); ok {
			apiErr.Code = code
		}
		return apiErr
	}
	if m, ok := body["message"].(string); ok { // echo's default error body
		apiErr.Message = m
		return apiErr
	}

	for field, v := range body {
		if s, ok := v.(string); ok {
			if apiErr.Fields == nil {
				apiErr.Fields = make(map[string]string)
			}
			apiErr.Fields[field] = s
		}
	}
	return apiErr
}
