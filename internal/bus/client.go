package bus

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/habsgoalie/text-to-audio-converter/internal/config"
	"github.com/habsgoalie/text-to-audio-converter/internal/jobs"
	"github.com/habsgoalie/text-to-audio-converter/internal/protocol"
	"github.com/nats-io/nats.go"
)

// Client wraps a NATS connection used to broadcast job lifecycle events.
// The bus is optional: polling the HTTP API works without it.
type Client struct {
	conn *nats.Conn
	log  *slog.Logger
}

func Connect(ctx context.Context, cfg config.BusConfig, log *slog.Logger) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}

	options := []nats.Option{
		nats.Name("tta-daemon"),
		nats.Timeout(time.Duration(cfg.ConnectTimeout) * time.Millisecond),
	}

	if cfg.Username != "" || cfg.Password != "" {
		options = append(options, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}
	if cfg.TLSInsecure {
		options = append(options, nats.Secure(&tls.Config{InsecureSkipVerify: true}))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info("connected to NATS", slog.String("servers", url))

	return &Client{
		conn: conn,
		log:  log,
	}, nil
}

func (c *Client) Close() {
	if c == nil || c.conn == nil {
		return
	}
	c.log.Info("closing NATS connection")
	c.conn.Drain()
	c.conn.Close()
}

func (c *Client) Healthy() bool {
	return c != nil && c.conn != nil && c.conn.Status() == nats.CONNECTED
}

func (c *Client) Conn() *nats.Conn {
	return c.conn
}

// PublishJobEvent pushes a job snapshot onto the per-job subject. Publish
// failures are logged, never propagated: the bus must not affect job outcome.
func (c *Client) PublishJobEvent(job jobs.Job) {
	if c == nil || c.conn == nil {
		return
	}
	evt := protocol.JobEvent{
		JobID:       job.ID,
		State:       string(job.State),
		Stage:       string(job.Progress.Stage),
		Chunk:       job.Progress.Chunk,
		TotalChunks: job.Progress.TotalChunks,
		Detail:      job.ErrorDetail,
		ResultPath:  job.ResultPath,
		Timestamp:   job.UpdatedAt,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		c.log.Warn("marshal job event", slog.String("error", err.Error()))
		return
	}
	if err := c.conn.Publish(protocol.SubjectJobEvents(job.ID), payload); err != nil {
		c.log.Warn("publish job event",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()))
	}
}
