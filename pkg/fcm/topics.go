package fcm

import (
	"context"
)

type topicMembershipRequest struct {
	To                 string   `json:"to"`
	RegistrationTokens []string `json:"registration_tokens"`
}

// SubscribeToTopic adds tokens to topic through the Instance ID service.
func (d *Dispatcher) SubscribeToTopic(ctx context.Context, topic string, tokens []string) (Response, error) {
	return d.manageTopic(ctx, "fcm.SubscribeToTopic", "topic_subscribe",
		d.endpoints().TopicSubscribe, topic, tokens, "failed to subscribe to topic")
}

// UnsubscribeFromTopic removes tokens from topic.
func (d *Dispatcher) UnsubscribeFromTopic(ctx context.Context, topic string, tokens []string) (Response, error) {
	return d.manageTopic(ctx, "fcm.UnsubscribeFromTopic", "topic_unsubscribe",
		d.endpoints().TopicUnsubscribe, topic, tokens, "failed to unsubscribe from topic")
}

// manageTopic is shared by both API versions; only the client's auth differs.
func (d *Dispatcher) manageTopic(ctx context.Context, op, metricOp, url, topic string, tokens []string, failMsg string) (Response, error) {
	if topic == "" {
		return nil, newError(ErrValidation, op, "no topic provided")
	}
	if len(tokens) == 0 {
		return nil, newError(ErrValidation, op, "no tokens provided")
	}

	payload := topicMembershipRequest{To: topicPath(topic), RegistrationTokens: tokens}
	resp, err := d.call(ctx, op, metricOp, url, payload, failMsg)
	if err != nil {
		return nil, err
	}
	if _, ok := resp["error"]; ok {
		return nil, &Error{Kind: ErrDispatch, Op: op, Message: failMsg, Response: resp}
	}

	d.logger.Info("Topic membership updated", "operation", metricOp, "topic", topic, "tokens", len(tokens))
	return resp, nil
}

func (d *Dispatcher) endpoints() Endpoints {
	switch api := d.settings.API.(type) {
	case LegacyAPI:
		return api.Endpoints
	case V1API:
		return api.Endpoints
	}
	return Endpoints{}
}
