package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/fastygo/groupbuy/api/transport"
	"github.com/fastygo/groupbuy/domain"
	"github.com/fastygo/groupbuy/pkg/httpcontext"
	"github.com/fastygo/groupbuy/pkg/logger"
	"github.com/fastygo/groupbuy/repository"
)

const apiPrefix = "/api/v1/campaigns"

// Doer is the subset of fasthttp.Client the store needs.
type Doer interface {
	DoDeadline(req *fasthttp.Request, resp *fasthttp.Response, deadline time.Time) error
}

type campaignStore struct {
	baseURL string
	client  Doer
	timeout time.Duration
}

// NewCampaignStore talks to the campaign API at baseURL. Transport
// failures and 5xx answers surface as domain.ErrRemoteUnavailable, 404 as
// domain.ErrCampaignNotFound.
func NewCampaignStore(baseURL string, client Doer, timeout time.Duration) (repository.CampaignStore, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid remote url %q", baseURL)
	}
	if client == nil {
		client = &fasthttp.Client{
			Name:                "campaignctl",
			MaxIdleConnDuration: 30 * time.Second,
		}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &campaignStore{
		baseURL: strings.TrimRight(u.String(), "/"),
		client:  client,
		timeout: timeout,
	}, nil
}

func (s *campaignStore) List(ctx context.Context) ([]domain.Campaign, error) {
	var out []domain.Campaign
	if err := s.do(ctx, fasthttp.MethodGet, apiPrefix, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *campaignStore) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	var out domain.Campaign
	if err := s.do(ctx, fasthttp.MethodGet, campaignPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *campaignStore) Create(ctx context.Context, c *domain.Campaign) (*domain.Campaign, error) {
	if c == nil {
		return nil, domain.ErrInvalidPayload
	}
	var out domain.Campaign
	if err := s.do(ctx, fasthttp.MethodPost, apiPrefix, transport.NewCampaignRequest(c), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *campaignStore) Update(ctx context.Context, id string, patch domain.Patch) (*domain.Campaign, error) {
	var out domain.Campaign
	if err := s.do(ctx, fasthttp.MethodPut, campaignPath(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *campaignStore) Delete(ctx context.Context, id string) error {
	return s.do(ctx, fasthttp.MethodDelete, campaignPath(id), nil, nil)
}

func (s *campaignStore) AddParticipant(ctx context.Context, campaignID string, p domain.Participant) (*domain.Participant, error) {
	req := transport.JoinRequest{ID: p.ID, Name: p.Name}
	if !p.JoinedAt.IsZero() {
		joined := p.JoinedAt
		req.JoinedAt = &joined
	}
	var out domain.Participant
	if err := s.do(ctx, fasthttp.MethodPost, campaignPath(campaignID)+"/participants", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *campaignStore) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return domain.Unavailable(err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if reqID := logger.RequestID(ctx); reqID != "" {
		req.Header.Set(httpcontext.HeaderRequestID, reqID)
	}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBodyRaw(payload)
	}

	if err := s.client.DoDeadline(req, resp, s.deadline(ctx)); err != nil {
		return domain.Unavailable(fmt.Errorf("%s %s: %w", method, path, err))
	}
	return decodeResponse(method, path, resp.StatusCode(), resp.Body(), out)
}

func (s *campaignStore) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		return d
	}
	return deadline
}

func decodeResponse(method, path string, status int, body []byte, out interface{}) error {
	if status == fasthttp.StatusNoContent {
		return nil
	}

	var env transport.RawEnvelope
	if len(body) > 0 {
		if err := json.Unmarshal(body, &env); err != nil {
			if status >= fasthttp.StatusInternalServerError {
				return domain.Unavailable(fmt.Errorf("%s %s: status %d", method, path, status))
			}
			return domain.WrapError(domain.ErrCodeInternal, "malformed response", err)
		}
	}

	switch {
	case status >= 200 && status < 300:
		return env.Decode(out)
	case status == fasthttp.StatusNotFound:
		return domain.ErrCampaignNotFound
	case status == fasthttp.StatusBadRequest:
		return domain.NewValidationError("%s", env.Message())
	case status == fasthttp.StatusConflict:
		return domain.WrapError(domain.ErrCodeConflict, env.Message(), nil)
	case status >= fasthttp.StatusInternalServerError:
		return domain.Unavailable(errors.New(statusMessage(status, env)))
	default:
		return domain.WrapError(domain.ErrCodeInternal, statusMessage(status, env), nil)
	}
}

func statusMessage(status int, env transport.RawEnvelope) string {
	if msg := env.Message(); msg != "" {
		return fmt.Sprintf("status %d: %s", status, msg)
	}
	return fmt.Sprintf("status %d", status)
}

func campaignPath(id string) string {
	return apiPrefix + "/" + url.PathEscape(id)
}

// Ping checks that the campaign API answers its health endpoint with 2xx.
func Ping(ctx context.Context, baseURL string, client Doer) error {
	if client == nil {
		client = &fasthttp.Client{}
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(strings.TrimRight(baseURL, "/") + "/health")
	req.Header.SetMethod(fasthttp.MethodGet)

	deadline := time.Now().Add(3 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := client.DoDeadline(req, resp, deadline); err != nil {
		return err
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return fmt.Errorf("health status %d", code)
	}
	return nil
}
