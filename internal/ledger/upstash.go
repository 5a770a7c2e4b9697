package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const (
	upstashKeyPrefix     = "processed:"
	upstashValueInFlight = "in_flight"
	upstashValueMinted   = "minted"
)

// UpstashBackend talks to Upstash Redis over its REST API. Each call posts one
// command as a JSON array and reads {"result": ...} or {"error": ...}.
type UpstashBackend struct {
	url    string
	client *resty.Client
}

func NewUpstashBackend(url, token string, timeout time.Duration) *UpstashBackend {
	client := resty.New().
		SetTimeout(timeout).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json")

	return &UpstashBackend{
		url:    url,
		client: client,
	}
}

type upstashReply struct {
	Result interface{} `json:"result"`
	Error  string      `json:"error"`
}

func (u *UpstashBackend) Name() string { return "upstash" }

func (u *UpstashBackend) IsMarked(ctx context.Context, key string) (bool, error) {
	result, err := u.do(ctx, "EXISTS", upstashKeyPrefix+key)
	if err != nil {
		return false, err
	}
	n, ok := result.(float64)
	return ok && n >= 1, nil
}

func (u *UpstashBackend) Mark(ctx context.Context, key string, _ Entry, ttl time.Duration) (bool, error) {
	seconds := strconv.FormatInt(int64(ttl/time.Second), 10)
	result, err := u.do(ctx, "SET", upstashKeyPrefix+key, upstashValueInFlight, "EX", seconds, "NX")
	if err != nil {
		return false, err
	}
	// nil result means the key already existed
	return result == "OK", nil
}

func (u *UpstashBackend) Complete(ctx context.Context, key, _ string) error {
	_, err := u.do(ctx, "SET", upstashKeyPrefix+key, upstashValueMinted, "XX", "KEEPTTL")
	return err
}

func (u *UpstashBackend) Unmark(ctx context.Context, key string) error {
	_, err := u.do(ctx, "DEL", upstashKeyPrefix+key)
	return err
}

func (u *UpstashBackend) Ping(ctx context.Context) error {
	result, err := u.do(ctx, "PING")
	if err != nil {
		return err
	}
	if result != "PONG" {
		return errors.Wrapf(ErrBackendUnavailable, "unexpected ping reply %v", result)
	}
	return nil
}

func (u *UpstashBackend) do(ctx context.Context, command ...string) (interface{}, error) {
	resp, err := u.client.R().
		SetContext(ctx).
		SetBody(command).
		Post(u.url)
	if err != nil {
		return nil, errors.Wrap(ErrBackendUnavailable, err.Error())
	}

	var reply upstashReply
	if err := json.Unmarshal(resp.Body(), &reply); err != nil {
		return nil, errors.Wrap(ErrBackendUnavailable, fmt.Sprintf("status %d: malformed reply", resp.StatusCode()))
	}
	if resp.IsError() || reply.Error != "" {
		return nil, errors.Wrap(ErrBackendUnavailable, fmt.Sprintf("status %d: %s", resp.StatusCode(), reply.Error))
	}

	return reply.Result, nil
}
