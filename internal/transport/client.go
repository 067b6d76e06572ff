package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"

	"ely.by/mcauth/internal/otel"
	"ely.by/mcauth/internal/version"
)

const maxBodySize = 4 << 20

type Client struct {
	http    *http.Client
	metrics *clientMetrics
	tracer  trace.Tracer
}

func New(httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	metrics, err := newClientMetrics(otel.GetMeter())
	if err != nil {
		return nil, err
	}

	return &Client{
		http:    httpClient,
		metrics: metrics,
		tracer:  otel.GetTracer(),
	}, nil
}

// HTTP exposes the underlying client for flows which must inspect raw responses
// (cookies, redirects, HTML bodies) instead of JSON documents
func (c *Client) HTTP() *http.Client {
	return c.http
}

type Request struct {
	Method string
	URL    string
	// JSON is encoded as the request body when not nil
	JSON any
	// Form is encoded as the request body when not nil. Ignored if JSON is set
	Form   url.Values
	Header http.Header
}

func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodGet, URL: url, Header: header}, out)
}

func (c *Client) PostJSON(ctx context.Context, url string, in any, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPost, URL: url, JSON: in}, out)
}

func (c *Client) PostForm(ctx context.Context, url string, form url.Values, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPost, URL: url, Form: form}, out)
}

// Do performs the request and decodes a JSON response into out (which may be nil).
// Error payloads are classified into *ServiceError, transport failures and
// undecodable bodies are wrapped with ErrServiceUnreachable
func (c *Client) Do(ctx context.Context, r *Request, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "transport."+strings.ToLower(r.Method), trace.WithAttributes(
		attribute.String("http.url", r.URL),
	))
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, "")
			span.RecordError(err)
			c.metrics.Failed.Add(ctx, 1)
		}

		span.End()
	}()

	request, err := c.newRequest(ctx, r)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	c.metrics.Requests.Add(ctx, 1)

	response, err := c.http.Do(request)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return unreachable(r.URL, err)
	}
	defer response.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", response.StatusCode))

	body, err := io.ReadAll(io.LimitReader(response.Body, maxBodySize))
	if err != nil {
		return unreachable(r.URL, err)
	}

	return decodeResponse(r.URL, response.StatusCode, body, out)
}

func (c *Client) newRequest(ctx context.Context, r *Request) (*http.Request, error) {
	var body io.Reader
	contentType := ""
	if r.JSON != nil {
		encoded, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, err
		}

		body = bytes.NewReader(encoded)
		contentType = "application/json"
	} else if r.Form != nil {
		body = strings.NewReader(r.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	request, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, err
	}

	for key, values := range r.Header {
		for _, value := range values {
			request.Header.Add(key, value)
		}
	}

	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}

	request.Header.Set("Accept", "application/json")
	if request.Header.Get("User-Agent") == "" {
		request.Header.Set("User-Agent", version.UserAgent())
	}

	return request, nil
}

type errorPayload struct {
	Error        string `json:"error"`
	Cause        string `json:"cause"`
	ErrorMessage string `json:"errorMessage"`
}

func decodeResponse(url string, status int, body []byte, out any) error {
	successful := status >= 200 && status < 300
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		if successful {
			return nil
		}

		return &StatusError{URL: url, Status: status}
	}

	if trimmed[0] == '{' {
		var payload errorPayload
		// Bodies which aren't an error object are decoded below
		if json.Unmarshal(trimmed, &payload) == nil && payload.Error != "" {
			return &ServiceError{
				Status:    status,
				ErrorType: payload.Error,
				Cause:     payload.Cause,
				Message:   payload.ErrorMessage,
			}
		}
	}

	if !successful {
		if out != nil {
			_ = json.Unmarshal(trimmed, out)
		}

		return &StatusError{URL: url, Status: status}
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(trimmed, out); err != nil {
		return unreachable(url, err)
	}

	return nil
}

func newClientMetrics(meter metric.Meter) (*clientMetrics, error) {
	m := &clientMetrics{}
	var errors, err error

	m.Requests, err = meter.Int64Counter(
		"mcauth.transport.request.sent",
		metric.WithDescription("Number of HTTP requests sent to the identity services"),
		metric.WithUnit("1"),
	)
	errors = multierr.Append(errors, err)

	m.Failed, err = meter.Int64Counter(
		"mcauth.transport.request.failed",
		metric.WithDescription("Number of HTTP requests which ended with an error"),
		metric.WithUnit("1"),
	)
	errors = multierr.Append(errors, err)

	return m, errors
}

type clientMetrics struct {
	Requests metric.Int64Counter
	Failed   metric.Int64Counter
}
