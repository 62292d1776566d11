package work

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/calebrw/taskgate/internal/config"
	"github.com/calebrw/taskgate/internal/retry"
	"github.com/calebrw/taskgate/internal/tracing"
)

// Forwarder posts the delivery payload to a downstream URL, signed with an
// HMAC over body||timestamp. Transient downstream failures are retried under
// the given policy; 4xx responses fail the delivery immediately.
type Forwarder struct {
	cfg    config.Forward
	http   *http.Client
	policy retry.Policy
}

func NewForwarder(cfg config.Forward, policy retry.Policy) *Forwarder {
	return &Forwarder{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		policy: policy,
	}
}

func (f *Forwarder) Process(ctx context.Context, d Delivery) error {
	ctx, span := tracing.StartSpan(ctx, "work.forward")
	defer span.End()

	return f.policy.Do(ctx, "work.forward", func(ctx context.Context) error {
		body := []byte(d.Payload)
		ts := strconv.FormatInt(time.Now().Unix(), 10)
		mac := hmac.New(sha256.New, []byte(f.cfg.Secret))
		mac.Write(body)
		mac.Write([]byte(ts))
		sig := hex.EncodeToString(mac.Sum(nil))

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(f.cfg.TimestampHeader, ts)
		req.Header.Set(f.cfg.SignatureHeader, "sha256="+sig)
		if traceID := tracing.GetTraceID(ctx); traceID != "" {
			req.Header.Set("X-Trace-Id", traceID)
		}

		resp, err := f.http.Do(req)
		if err != nil {
			return fmt.Errorf("forward %s: %w", d.EventID, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &retry.StatusError{Code: resp.StatusCode, Body: string(respBody)}
	})
}
