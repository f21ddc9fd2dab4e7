package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phuttachad/dormcore/internal/reliability/retry"
	"github.com/phuttachad/dormcore/pkg/cache"
)

// ContractDocument is a located contract file for a tenant.
type ContractDocument struct {
	TenantID string `json:"tenantId"`
	URL      string `json:"url"`
	Format   string `json:"format"` // pdf or jpg
}

// ContractService probes the document host for a tenant's contract file:
// {tenantID}.pdf first, {tenantID}.jpg second, first hit wins. Absence of
// both is a normal not-found result, never an error. Probes are idempotent
// HEAD requests, so transient failures are retried; positive and negative
// results are cached briefly.
type ContractService struct {
	baseURL     string
	client      *http.Client
	cache       *cache.Cache
	cacheTTL    time.Duration
	retryPolicy *retry.Policy
	logger      *slog.Logger
}

// NewContractService creates a new contract lookup service.
func NewContractService(baseURL string, cacheTTL time.Duration, logger *slog.Logger) *ContractService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContractService{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: 10 * time.Second},
		cache:       cache.New(),
		cacheTTL:    cacheTTL,
		retryPolicy: retry.DefaultPolicy(),
		logger:      logger,
	}
}

// Lookup returns the contract document for a tenant, or (nil, nil) when no
// file exists in either format.
func (s *ContractService) Lookup(ctx context.Context, tenantID string) (*ContractDocument, error) {
	if cached, ok := s.cache.Get(tenantID); ok {
		doc, _ := cached.(*ContractDocument) // nil entry = cached not-found
		return doc, nil
	}

	for _, format := range []string{"pdf", "jpg"} {
		url := fmt.Sprintf("%s/%s.%s", s.baseURL, tenantID, format)
		exists, err := s.probe(ctx, url)
		if err != nil {
			s.logger.Warn("contract probe failed",
				slog.String("tenant_id", tenantID),
				slog.String("url", url),
				slog.String("error", err.Error()),
			)
			continue // a broken probe degrades to not-found, per contract
		}
		if exists {
			doc := &ContractDocument{TenantID: tenantID, URL: url, Format: format}
			s.cache.Set(tenantID, doc, s.cacheTTL)
			return doc, nil
		}
	}

	s.cache.Set(tenantID, (*ContractDocument)(nil), s.cacheTTL)
	return nil, nil
}

func (s *ContractService) probe(ctx context.Context, url string) (bool, error) {
	return retry.Do(ctx, s.retryPolicy, s.logger, "contract HEAD", func(ctx context.Context) (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false, err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return false, err
		}
		defer resp.Body.Close()
		return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
	})
}
