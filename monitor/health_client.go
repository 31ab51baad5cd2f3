package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tarikbc/accountmonitor/models"

	"code.cloudfoundry.org/lager/v3"
)

// HealthClient fetches account health snapshots from the worker-health
// provider over HTTP. A 404 means the worker has not reported yet and is not
// an error.
type HealthClient struct {
	logger      lager.Logger
	providerURL string
	client      *http.Client
}

func NewHealthClient(logger lager.Logger, providerURL string, timeout time.Duration) *HealthClient {
	return &HealthClient{
		logger:      logger.Session("health-client"),
		providerURL: providerURL,
		client:      &http.Client{Timeout: timeout},
	}
}

func (c *HealthClient) HealthSnapshot(ctx context.Context, accountId string) (*models.HealthSnapshot, error) {
	requestURL := fmt.Sprintf("%s/v1/accounts/%s/health", c.providerURL, url.PathEscape(accountId))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query health provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.logger.Debug("no-snapshot-reported", lager.Data{"accountId": accountId})
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health provider responded %d for account %s", resp.StatusCode, accountId)
	}

	var snapshot models.HealthSnapshot
	err = json.NewDecoder(resp.Body).Decode(&snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to decode health snapshot: %w", err)
	}
	return &snapshot, nil
}
