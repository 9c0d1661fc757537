package covid19br

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/covid-br-etl/internal/domain"
	"github.com/couchcryptid/covid-br-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

const (
	feedStates = "states"
	feedCities = "cities"
)

// Client downloads the wcota/covid19br CSV feeds.
// It implements pipeline.Source.
type Client struct {
	statesURL  string
	citiesURL  string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
	clock      clockwork.Clock
}

// NewClient creates a feed client for the given state and city feed URLs.
func NewClient(statesURL, citiesURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		statesURL: statesURL,
		citiesURL: citiesURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
		clock:   clockwork.NewRealClock(),
	}
}

// FetchStates downloads and parses the state-level feed.
func (c *Client) FetchStates(ctx context.Context) ([]domain.RawStateRow, error) {
	var rows []domain.RawStateRow
	err := c.fetch(ctx, feedStates, c.statesURL, func(body io.Reader) error {
		var err error
		rows, err = DecodeStates(body)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.metrics.RowsFetched.WithLabelValues(feedStates).Add(float64(len(rows)))
	return rows, nil
}

// FetchCities downloads and parses the city-level feed.
func (c *Client) FetchCities(ctx context.Context) ([]domain.RawCityRow, error) {
	var rows []domain.RawCityRow
	err := c.fetch(ctx, feedCities, c.citiesURL, func(body io.Reader) error {
		var err error
		rows, err = DecodeCities(body)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.metrics.RowsFetched.WithLabelValues(feedCities).Add(float64(len(rows)))
	return rows, nil
}

func (c *Client) fetch(ctx context.Context, feed, url string, parse func(io.Reader) error) error {
	start := c.clock.Now()
	err := c.doRequest(ctx, feed, url, parse)
	elapsed := c.clock.Since(start)

	c.metrics.FetchDuration.WithLabelValues(feed).Observe(elapsed.Seconds())
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues(feed, "error").Inc()
		return err
	}
	c.metrics.FetchRequests.WithLabelValues(feed, "success").Inc()
	c.logger.Debug("feed fetched", "feed", feed, "url", url, "duration", elapsed)
	return nil
}

func (c *Client) doRequest(ctx context.Context, feed, url string, parse func(io.Reader) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s feed: %w", feed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("fetch %s feed: status %d: %s", feed, resp.StatusCode, body)
	}

	return parse(resp.Body)
}
