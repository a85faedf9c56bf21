package fcm

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	// v1BatchSize caps how many tokens are in flight as one group.
	v1BatchSize = 500
	// v1Concurrency bounds simultaneous requests inside a group.
	v1Concurrency = 5
)

// sendToDevicesV1 issues one request per token, in groups of v1BatchSize with
// at most v1Concurrency requests in flight. Individual failures are recorded
// and never abort the group.
func (d *Dispatcher) sendToDevicesV1(ctx context.Context, api V1API, msg *Message) (*Result, error) {
	dispatchID := uuid.NewString()
	logger := d.logger.With("dispatch_id", dispatchID)
	url := api.sendURL()
	payloads := msg.ToV1Batch()
	start := time.Now()

	result := &Result{}
	for from := 0; from < len(payloads); from += v1BatchSize {
		to := min(from+v1BatchSize, len(payloads))
		batch := payloads[from:to]

		// Each goroutine owns one slot, and every outcome carries the token its
		// own request targeted.
		outcomes := make([]Outcome, len(batch))
		var g errgroup.Group
		g.SetLimit(v1Concurrency)
		for i, payload := range batch {
			g.Go(func() error {
				outcomes[i] = d.sendV1Token(ctx, url, payload)
				return nil
			})
		}
		_ = g.Wait()

		result.add(outcomes...)
		logger.Debug("Batch dispatched", "from", from, "size", len(batch))
	}

	logger.Info("Device notification dispatched",
		"tokens", len(payloads),
		"success", result.SuccessCount,
		"failure", result.FailureCount,
		"duration", time.Since(start),
	)
	return result, nil
}

func (d *Dispatcher) sendV1Token(ctx context.Context, url string, payload V1Message) Outcome {
	out := Outcome{Token: payload.Token}

	status, resp, err := d.post(ctx, "send_device", url, V1Envelope{Message: payload})
	if err != nil {
		out.Error = err.Error()
		return out
	}
	if status < 200 || status >= 300 {
		out.Error, out.ErrorCode = v1ErrorDetail(resp, status)
		return out
	}

	out.Success = true
	out.MessageID, _ = stringField(resp, "name")
	return out
}

func (d *Dispatcher) sendToTopicV1(ctx context.Context, api V1API, msg *Message) (*Result, error) {
	const op = "fcm.SendToTopic"

	resp, err := d.call(ctx, op, "send_topic", api.sendURL(), msg.ToV1Single(), "failed to send notification to topic")
	if err != nil {
		return nil, err
	}

	name, ok := stringField(resp, "name")
	if !ok {
		return nil, &Error{Kind: ErrDispatch, Op: op, Message: "failed to send to topic", Response: resp}
	}
	return &Result{SuccessCount: 1, MessageID: name, Raw: resp}, nil
}

// v1ErrorDetail extracts the message and the most specific error code from a
// google.rpc.Status shaped body.
func v1ErrorDetail(resp Response, status int) (string, string) {
	fallback := fmt.Sprintf("provider returned status %d", status)

	switch e := resp["error"].(type) {
	case string:
		return e, ""
	case map[string]any:
		message, ok := stringField(e, "message")
		if !ok {
			message = fallback
		}
		code, _ := stringField(e, "status")
		if details, ok := e["details"].([]any); ok {
			for _, detail := range details {
				fields, _ := detail.(map[string]any)
				if errorCode, ok := stringField(fields, "errorCode"); ok {
					code = errorCode
					break
				}
			}
		}
		return message, code
	}
	if body, ok := stringField(resp, "body"); ok {
		return fmt.Sprintf("%s: %s", fallback, body), ""
	}
	return fallback, ""
}
