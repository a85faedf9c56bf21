package fcm

import (
	"context"
)

// sendToDevicesLegacy posts one multicast request. A non-zero failure counter
// in the reply is the error signal.
func (d *Dispatcher) sendToDevicesLegacy(ctx context.Context, api LegacyAPI, msg *Message) (*Result, error) {
	const op = "fcm.SendToDevices"

	resp, err := d.call(ctx, op, "send_devices", api.Endpoints.Send, msg.ToLegacy(), "failed to send notification")
	if err != nil {
		return nil, err
	}

	result := &Result{
		SuccessCount: intField(resp, "success"),
		FailureCount: intField(resp, "failure"),
		Outcomes:     legacyOutcomes(msg.Tokens(), resp),
		Raw:          resp,
	}
	if result.FailureCount > 0 {
		d.logger.Warn("Legacy multicast reported failures",
			"success", result.SuccessCount, "failure", result.FailureCount)
		return nil, &Error{
			Kind:     ErrPartialFailure,
			Op:       op,
			Message:  "some messages failed to send",
			Response: resp,
			Result:   result,
		}
	}
	return result, nil
}

// sendToTopicLegacy posts to the topic. Any reply without message_id is a
// failure, whatever else it contains.
func (d *Dispatcher) sendToTopicLegacy(ctx context.Context, api LegacyAPI, msg *Message) (*Result, error) {
	const op = "fcm.SendToTopic"

	resp, err := d.call(ctx, op, "send_topic", api.Endpoints.Send, msg.ToLegacy(), "failed to send notification to topic")
	if err != nil {
		return nil, err
	}

	id, ok := stringField(resp, "message_id")
	if !ok {
		return nil, &Error{Kind: ErrDispatch, Op: op, Message: "failed to send to topic", Response: resp}
	}
	return &Result{SuccessCount: 1, MessageID: id, Raw: resp}, nil
}

// legacyOutcomes zips the positional results array with the request tokens.
func legacyOutcomes(tokens []string, resp Response) []Outcome {
	items, ok := resp["results"].([]any)
	if !ok {
		return nil
	}
	outcomes := make([]Outcome, 0, len(items))
	for i, item := range items {
		if i >= len(tokens) {
			break
		}
		fields, _ := item.(map[string]any)
		o := Outcome{Token: tokens[i]}
		if reason, ok := stringField(fields, "error"); ok {
			o.Error = reason
			o.ErrorCode = reason
		} else {
			o.Success = true
			o.MessageID, _ = stringField(fields, "message_id")
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}
