package fcm

// Response is a decoded provider response body.
type Response map[string]any

// Outcome is the delivery result for a single token.
type Outcome struct {
	Token     string `json:"token"`
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
	// ErrorCode is the provider's machine readable reason, e.g. UNREGISTERED
	// (v1) or NotRegistered (legacy).
	ErrorCode string `json:"error_code,omitempty"`
}

// Unregistered reports whether the provider says the token is no longer valid
// and should be removed from any registry.
func (o Outcome) Unregistered() bool {
	if o.Success {
		return false
	}
	switch o.ErrorCode {
	case "UNREGISTERED", "NotRegistered", "InvalidRegistration", "MissingRegistration":
		return true
	}
	return false
}

// Result aggregates the outcome of a send. Device sends fill the counters and
// Outcomes; topic sends set MessageID. Raw holds the provider body when the
// call was a single request.
type Result struct {
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
	Outcomes     []Outcome `json:"results,omitempty"`
	MessageID    string    `json:"message_id,omitempty"`
	Raw          Response  `json:"raw,omitempty"`
}

func (r *Result) add(outcomes ...Outcome) {
	for _, o := range outcomes {
		if o.Success {
			r.SuccessCount++
		} else {
			r.FailureCount++
		}
		r.Outcomes = append(r.Outcomes, o)
	}
}

// Failed returns the failed outcomes in request order.
func (r *Result) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.Success {
			out = append(out, o)
		}
	}
	return out
}

// UnregisteredTokens lists the tokens the provider reported as dead.
func (r *Result) UnregisteredTokens() []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.Unregistered() {
			out = append(out, o.Token)
		}
	}
	return out
}
