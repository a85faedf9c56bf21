package fcm

import (
	"os"
	"strings"
	"time"
)

// APIVersion names the FCM HTTP API a dispatcher talks to.
type APIVersion string

const (
	APIVersionLegacy APIVersion = "legacy"
	APIVersionV1     APIVersion = "v1"
)

// Default endpoints, matching the public FCM and Instance ID services.
const (
	DefaultV1SendEndpoint      = "https://fcm.googleapis.com/v1/projects/{project_id}/messages:send"
	DefaultLegacySendEndpoint  = "https://fcm.googleapis.com/fcm/send"
	DefaultSubscribeEndpoint   = "https://iid.googleapis.com/iid/v1:batchAdd"
	DefaultUnsubscribeEndpoint = "https://iid.googleapis.com/iid/v1:batchRemove"

	DefaultTimeout = 30 * time.Second

	projectIDPlaceholder = "{project_id}"
)

// ambientCredentialsEnv is the Application Default Credentials signal.
const ambientCredentialsEnv = "GOOGLE_APPLICATION_CREDENTIALS"

// Endpoints is the URL set for one API version. Send may contain the
// {project_id} placeholder.
type Endpoints struct {
	Send             string
	TopicSubscribe   string
	TopicUnsubscribe string
}

func DefaultLegacyEndpoints() Endpoints {
	return Endpoints{
		Send:             DefaultLegacySendEndpoint,
		TopicSubscribe:   DefaultSubscribeEndpoint,
		TopicUnsubscribe: DefaultUnsubscribeEndpoint,
	}
}

func DefaultV1Endpoints() Endpoints {
	return Endpoints{
		Send:             DefaultV1SendEndpoint,
		TopicSubscribe:   DefaultSubscribeEndpoint,
		TopicUnsubscribe: DefaultUnsubscribeEndpoint,
	}
}

func (e Endpoints) missing(prefix string) string {
	switch {
	case e.Send == "":
		return prefix + ".send"
	case e.TopicSubscribe == "":
		return prefix + ".topic_subscribe"
	case e.TopicUnsubscribe == "":
		return prefix + ".topic_unsubscribe"
	}
	return ""
}

// API is the version-specific half of Settings. It is implemented only by
// LegacyAPI and V1API.
type API interface {
	Version() APIVersion
	validate() error
}

// LegacyAPI authenticates with a static server key.
type LegacyAPI struct {
	ServerKey string
	Endpoints Endpoints
}

func (LegacyAPI) Version() APIVersion { return APIVersionLegacy }

func (a LegacyAPI) validate() error {
	if a.ServerKey == "" {
		return newError(ErrConfig, "fcm.NewDispatcher", "server_key is required for the legacy API")
	}
	if field := a.Endpoints.missing("endpoints.legacy"); field != "" {
		return newError(ErrConfig, "fcm.NewDispatcher", field+" is required for the legacy API")
	}
	return nil
}

// V1API authenticates with OAuth2 bearer tokens minted from a service account
// key file or from Application Default Credentials.
type V1API struct {
	ProjectID             string
	ServiceAccountKeyPath string
	Endpoints             Endpoints
}

func (V1API) Version() APIVersion { return APIVersionV1 }

func (a V1API) validate() error {
	if a.ProjectID == "" {
		return newError(ErrConfig, "fcm.NewDispatcher", "project_id is required for the v1 API")
	}
	if a.ServiceAccountKeyPath == "" && os.Getenv(ambientCredentialsEnv) == "" {
		return newError(ErrConfig, "fcm.NewDispatcher",
			"service_account_key_path or "+ambientCredentialsEnv+" is required for the v1 API")
	}
	if field := a.Endpoints.missing("endpoints.v1"); field != "" {
		return newError(ErrConfig, "fcm.NewDispatcher", field+" is required for the v1 API")
	}
	return nil
}

// sendURL substitutes the project id into the send endpoint.
func (a V1API) sendURL() string {
	return strings.ReplaceAll(a.Endpoints.Send, projectIDPlaceholder, a.ProjectID)
}

// Settings is the read-only dispatcher configuration.
type Settings struct {
	API     API
	Timeout time.Duration

	// RetryAttempts and RetryInterval are carried for configuration
	// compatibility only. The dispatcher never retries; callers own retries.
	RetryAttempts int
	RetryInterval time.Duration
}

// Validate checks the settings the way NewDispatcher does.
func (s Settings) Validate() error {
	if s.API == nil {
		return newError(ErrConfig, "fcm.NewDispatcher", "api_version must be legacy or v1")
	}
	return s.API.validate()
}

func (s Settings) timeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultTimeout
	}
	return s.Timeout
}
