// Package gateway provides clients for the hosted cart backend: a REST client
// for the commercetools-style cart API and an in-process memory backend.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cartsync/internal/ctapi"
	"cartsync/internal/domain"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// HTTPConfig carries the store credentials and session the client is bound to.
type HTTPConfig struct {
	BaseURL    string
	ProjectKey string
	SessionID  string
	Token      string
	Timeout    time.Duration
	Client     *http.Client
	Logger     logrus.FieldLogger
}

// HTTPClient talks to the cart API of one project on behalf of one session.
type HTTPClient struct {
	cartURL string
	token   string
	client  *http.Client
	logger  logrus.FieldLogger
	tracer  trace.Tracer
}

// NewHTTPClient validates cfg and builds a client. It does not contact the
// backend.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, domain.NewValidationError("baseURL", "required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, errors.Wrap(err, "parse gateway url")
	}
	if strings.TrimSpace(cfg.ProjectKey) == "" {
		return nil, domain.NewValidationError("projectKey", "required")
	}
	if strings.TrimSpace(cfg.SessionID) == "" {
		return nil, domain.NewValidationError("sessionID", "required")
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = discardLogger()
	}

	return &HTTPClient{
		cartURL: fmt.Sprintf("%s/%s/sessions/%s/cart", base, url.PathEscape(cfg.ProjectKey), url.PathEscape(cfg.SessionID)),
		token:   cfg.Token,
		client:  client,
		logger:  logger.WithField("component", "gateway"),
		tracer:  otel.Tracer("cartsync/gateway"),
	}, nil
}

func (c *HTTPClient) Get(ctx context.Context) (*domain.Cart, error) {
	return c.roundTrip(ctx, "get", "", http.MethodGet, nil)
}

func (c *HTTPClient) AddItem(ctx context.Context, draft domain.LineDraft) (*domain.Cart, error) {
	return c.update(ctx, ctapi.UpdateAction{
		Action:    ctapi.ActionAddLineItem,
		SKU:       draft.SKU,
		VariantID: draft.VariantID,
		Quantity:  draft.Quantity,
	})
}

func (c *HTTPClient) UpdateItem(ctx context.Context, lineItemID string, quantity int) (*domain.Cart, error) {
	return c.update(ctx, ctapi.UpdateAction{
		Action:     ctapi.ActionChangeLineItemQuantity,
		LineItemID: lineItemID,
		Quantity:   quantity,
	})
}

func (c *HTTPClient) RemoveItem(ctx context.Context, lineItemID string) (*domain.Cart, error) {
	return c.update(ctx, ctapi.UpdateAction{
		Action:     ctapi.ActionRemoveLineItem,
		LineItemID: lineItemID,
	})
}

func (c *HTTPClient) SetItems(ctx context.Context, items []domain.LineDraft) (*domain.Cart, error) {
	if items == nil {
		items = []domain.LineDraft{}
	}
	return c.update(ctx, ctapi.UpdateAction{
		Action: ctapi.ActionSetLineItems,
		Items:  items,
	})
}

func (c *HTTPClient) update(ctx context.Context, action ctapi.UpdateAction) (*domain.Cart, error) {
	body, err := json.Marshal(ctapi.UpdateRequest{Actions: []ctapi.UpdateAction{action}})
	if err != nil {
		return nil, errors.Wrap(err, "encode update")
	}
	return c.roundTrip(ctx, action.Action, action.LineItemID, http.MethodPost, body)
}

func (c *HTTPClient) roundTrip(ctx context.Context, op, ref, method string, body []byte) (*domain.Cart, error) {
	ctx, span := c.tracer.Start(ctx, "gateway."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	cart, err := c.send(ctx, op, ref, method, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.WithError(err).WithField("op", op).Warn("gateway call failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("cart.id", cart.ID),
		attribute.Int("cart.version", cart.Version),
		attribute.Int("cart.item_count", cart.ItemCount()),
	)
	c.logger.WithFields(logrus.Fields{"op": op, "cart_id": cart.ID, "version": cart.Version}).Debug("gateway call ok")
	return cart, nil
}

func (c *HTTPClient) send(ctx context.Context, op, ref, method string, body []byte) (*domain.Cart, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cartURL, reader)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &domain.TransportError{Op: op, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(op, ref, resp.StatusCode, payload)
	}

	var doc ctapi.Cart
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, &domain.TransportError{Op: op, Status: resp.StatusCode, Err: errors.Wrap(err, "decode cart")}
	}
	return doc.ToDomain(), nil
}

// decodeError maps a non-2xx response onto the error taxonomy. Anything that is
// not a recognised client error counts as a transport failure.
func decodeError(op, ref string, status int, payload []byte) error {
	var body ctapi.ErrorResponse
	_ = json.Unmarshal(payload, &body)
	message := strings.TrimSpace(body.Message)
	if message == "" {
		message = http.StatusText(status)
	}
	code := ""
	if len(body.Errors) > 0 {
		code = body.Errors[0].Code
	}

	switch {
	case status == http.StatusNotFound || code == ctapi.CodeResourceNotFound:
		if ref == "" {
			return &domain.NotFoundError{Resource: "cart", ID: message}
		}
		return &domain.NotFoundError{Resource: "line item", ID: ref}
	case status == http.StatusBadRequest || code == ctapi.CodeInvalidInput:
		return &domain.ValidationError{Reason: message}
	default:
		return &domain.TransportError{Op: op, Status: status, Err: errors.New(message)}
	}
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
