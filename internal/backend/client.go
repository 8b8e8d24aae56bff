package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/model"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/vocab"
)

var tracer = otel.Tracer("eventwatch/backend")

// Client is the resty-based backend client. It implements Submitter, Oracle and Refresher.
type Client struct {
	client *resty.Client

	mu    sync.RWMutex
	token string
	group singleflight.Group
}

// NewClient builds a client for baseURL using token as the bearer credential.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		token: token,
	}
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) request(ctx context.Context) *resty.Request {
	r := c.client.R().SetContext(ctx)
	if tok := c.bearer(); tok != "" {
		r.SetAuthToken(tok)
	}
	return r
}

// ackBody is the shape of both success and 409 responses.
type ackBody struct {
	FirstPerceived bool               `json:"firstPerceived"`
	Record         *model.EventRecord `json:"record,omitempty"`
}

func (c *Client) submit(ctx context.Context, op string, rec model.EventRecord, send func(*resty.Request) (*resty.Response, error)) (Result, error) {
	ctx, span := tracer.Start(ctx, "backend."+op, trace.WithAttributes(
		attribute.String("event.id", rec.ID),
		attribute.String("event.kind", string(rec.Kind)),
		attribute.String("event.world", rec.World),
	))
	defer span.End()

	var ok, conflict ackBody
	resp, err := send(c.request(ctx).SetBody(rec).SetResult(&ok).SetError(&conflict))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return Result{}, NewNetworkError(op, err)
	}

	status := resp.StatusCode()
	span.SetAttributes(attribute.Int("http.status_code", status))
	switch {
	case status >= 200 && status < 300:
		return Result{Outcome: Accepted, FirstPerceived: ok.FirstPerceived}, nil
	case status == http.StatusConflict:
		return Result{Outcome: Conflict, FirstPerceived: conflict.FirstPerceived, Existing: conflict.Record}, nil
	case status == http.StatusNotFound && op == "delete":
		return Result{Outcome: Accepted}, nil
	default:
		herr := NewHTTPError(op, status, resp.String())
		span.RecordError(herr)
		span.SetStatus(codes.Error, herr.Error())
		return Result{}, herr
	}
}

// SubmitCreate registers a new sighting. 409 means another observer won the race.
func (c *Client) SubmitCreate(ctx context.Context, rec model.EventRecord) (Result, error) {
	return c.submit(ctx, "create", rec, func(r *resty.Request) (*resty.Response, error) {
		return r.Post("/events")
	})
}

// SubmitEdit sends a superseding version of an existing record.
func (c *Client) SubmitEdit(ctx context.Context, rec model.EventRecord) (Result, error) {
	return c.submit(ctx, "edit", rec, func(r *resty.Request) (*resty.Response, error) {
		return r.Patch("/events/" + url.PathEscape(rec.ID))
	})
}

// SubmitDelete removes a record. Deleting an unknown id is treated as success.
func (c *Client) SubmitDelete(ctx context.Context, rec model.EventRecord) (Result, error) {
	return c.submit(ctx, "delete", rec, func(r *resty.Request) (*resty.Response, error) {
		return r.Delete("/events/" + url.PathEscape(rec.ID))
	})
}

type oracleBody struct {
	Active    bool  `json:"active"`
	Remaining int64 `json:"remaining"`
}

// Status reads the oracle timer for kind on world. 404 maps to ErrWorldUnknown.
func (c *Client) Status(ctx context.Context, world string, kind vocab.Kind) (OracleStatus, error) {
	ctx, span := tracer.Start(ctx, "backend.oracle.status", trace.WithAttributes(
		attribute.String("event.world", world),
		attribute.String("event.kind", string(kind)),
	))
	defer span.End()

	var body oracleBody
	resp, err := c.request(ctx).
		SetResult(&body).
		SetPathParams(map[string]string{"world": world, "kind": string(kind)}).
		Get("/oracle/worlds/{world}/kinds/{kind}")
	if err != nil {
		span.RecordError(err)
		return OracleStatus{}, NewNetworkError("oracle status", err)
	}
	switch status := resp.StatusCode(); {
	case status == http.StatusNotFound:
		return OracleStatus{}, fmt.Errorf("world %s: %w", world, ErrWorldUnknown)
	case status < 200 || status >= 300:
		return OracleStatus{}, NewHTTPError("oracle status", status, resp.String())
	}
	return OracleStatus{
		World:     world,
		Kind:      kind,
		Active:    body.Active,
		Remaining: time.Duration(body.Remaining) * time.Second,
	}, nil
}

// Register hands a locally known record to the oracle.
func (c *Client) Register(ctx context.Context, rec model.EventRecord) error {
	ctx, span := tracer.Start(ctx, "backend.oracle.register", trace.WithAttributes(
		attribute.String("event.id", rec.ID),
		attribute.String("event.world", rec.World),
	))
	defer span.End()

	resp, err := c.request(ctx).
		SetBody(rec).
		SetPathParam("world", rec.World).
		Post("/oracle/worlds/{world}")
	if err != nil {
		span.RecordError(err)
		return NewNetworkError("oracle register", err)
	}
	if resp.IsError() {
		return NewHTTPError("oracle register", resp.StatusCode(), resp.String())
	}
	return nil
}

type tokenBody struct {
	Token string `json:"token"`
}

// Refresh exchanges the current token for a new one. Concurrent callers share
// a single request.
func (c *Client) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (any, error) {
		var body tokenBody
		resp, err := c.request(ctx).SetResult(&body).Post("/auth/refresh")
		if err != nil {
			return nil, NewNetworkError("token refresh", err)
		}
		if resp.IsError() || body.Token == "" {
			return nil, NewHTTPError("token refresh", resp.StatusCode(), resp.String())
		}
		c.mu.Lock()
		c.token = body.Token
		c.mu.Unlock()
		return nil, nil
	})
	return err
}

// Ping checks the backend health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.client.R().SetContext(ctx).Get("/health")
	if err != nil {
		return NewNetworkError("health", err)
	}
	if resp.IsError() {
		return NewHTTPError("health", resp.StatusCode(), resp.String())
	}
	return nil
}
