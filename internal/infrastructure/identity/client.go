package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/phuttachad/dormcore/internal/domain"
	"github.com/phuttachad/dormcore/internal/reliability/circuitbreaker"
)

// Client talks to the external identity provisioning gateway over HTTP. Calls
// carry a bounded timeout and run behind a circuit breaker. Identity creation
// is never retried by this client: a timed-out create may have committed on
// the gateway, so it is reported as a dependency failure and the orchestrator
// treats it as IdentityFailed.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewClient creates a gateway client. timeout bounds every create call.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	cb := circuitbreaker.New(5, 2, 30*time.Second)
	cb.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warn("identity gateway circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: cb,
		logger:  logger,
	}
}

type createRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"role"`
}

type createResponse struct {
	IdentityID string `json:"identity_id"`
	Error      string `json:"error,omitempty"`
}

// CreateIdentity issues a new identity at the gateway, forwarding the
// caller's authorization token untouched.
func (c *Client) CreateIdentity(ctx context.Context, authToken string, req domain.IdentityRequest) (string, error) {
	if !c.breaker.Allow() {
		return "", domain.NewDependencyError("identity gateway", errors.New("circuit breaker open"))
	}

	body, err := json.Marshal(createRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Role:      req.Role,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode identity request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/identities", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build identity request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.breaker.RecordFailure()
		// Timeouts and unreachability both surface as dependency failures;
		// no partial identity is assumed.
		return "", domain.NewDependencyError("identity gateway", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.breaker.RecordFailure()
		return "", domain.NewDependencyError("identity gateway", err)
	}

	var out createResponse
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &out); err != nil {
			c.breaker.RecordFailure()
			return "", domain.NewDependencyError("identity gateway", fmt.Errorf("bad response: %w", err))
		}
	}

	switch {
	case resp.StatusCode == http.StatusConflict:
		// The gateway's duplicate-email signal; not a gateway fault.
		c.breaker.RecordSuccess()
		return "", domain.ErrDuplicateEmail(req.Email)
	case resp.StatusCode >= 500:
		c.breaker.RecordFailure()
		return "", domain.NewDependencyError("identity gateway",
			fmt.Errorf("status %d: %s", resp.StatusCode, out.Error))
	case resp.StatusCode >= 400:
		c.breaker.RecordSuccess()
		return "", domain.NewValidationError("identity gateway rejected request: %s", out.Error)
	}

	if out.IdentityID == "" {
		c.breaker.RecordFailure()
		return "", domain.NewDependencyError("identity gateway", errors.New("response missing identity_id"))
	}

	c.breaker.RecordSuccess()
	c.logger.Info("identity created", slog.String("identity_id", out.IdentityID))
	return out.IdentityID, nil
}
