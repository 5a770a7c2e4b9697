package webhook

import (
	"context"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dwarvesf/mint-relayer/internal/utils/logger"
)

// Alert is posted as JSON when an operator has to reconcile a payment by hand.
type Alert struct {
	Event      string            `json:"event"`
	TxHash     string            `json:"txHash"`
	MintTxHash string            `json:"mintTxHash,omitempty"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// Client posts alerts to a webhook. An empty URL disables it.
type Client struct {
	url        string
	httpClient *resty.Client
	logger     *logger.Logger
}

func New(url string, logger *logger.Logger) *Client {
	return &Client{
		url: url,
		httpClient: resty.New().
			SetTimeout(10 * time.Second).
			SetHeader("Content-Type", "application/json"),
		logger: logger,
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.url != ""
}

// Notify never fails the caller; delivery problems are only logged.
func (c *Client) Notify(ctx context.Context, alert Alert) {
	if !c.Enabled() {
		return
	}
	if alert.OccurredAt.IsZero() {
		alert.OccurredAt = time.Now().UTC()
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(alert).
		Post(c.url)
	if err != nil {
		c.logger.Error("[Notify] failed to call alert webhook", map[string]string{
			"event": alert.Event,
			"error": err.Error(),
		})
		return
	}
	if resp.IsError() {
		c.logger.Error("[Notify] alert webhook rejected alert", map[string]string{
			"event":       alert.Event,
			"status_code": strconv.Itoa(resp.StatusCode()),
		})
		return
	}

	c.logger.Info("[Notify] alert delivered", map[string]string{
		"event":  alert.Event,
		"txHash": alert.TxHash,
	})
}
