package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultAPIURL is the public DolarAPI monitor list.
const DefaultAPIURL = "https://ve.dolarapi.com/v1/dolares"

// Rates holds the two published Bs/USD rates.
type Rates struct {
	Official   float64
	Parallel   float64
	LastUpdate string
}

// RateService supplies the current exchange rates. The ledger never calls it
// directly; rate changes flow through partition configuration.
type RateService interface {
	CurrentRates(ctx context.Context) (Rates, error)
}

// DolarAPIClient fetches rates from ve.dolarapi.com with a bounded timeout.
// Results are cached for a TTL and concurrent refreshes are collapsed, since
// several conversations may ask for rates at once.
type DolarAPIClient struct {
	url    string
	client *http.Client
	ttl    time.Duration

	group singleflight.Group

	mu        sync.Mutex
	cached    Rates
	fetchedAt time.Time
}

func NewDolarAPIClient(url string, ttl time.Duration) *DolarAPIClient {
	if url == "" {
		url = DefaultAPIURL
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &DolarAPIClient{
		url:    url,
		ttl:    ttl,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type monitor struct {
	Fuente             string  `json:"fuente"`
	Promedio           float64 `json:"promedio"`
	FechaActualizacion string  `json:"fechaActualizacion"`
}

func (c *DolarAPIClient) CurrentRates(ctx context.Context) (Rates, error) {
	c.mu.Lock()
	if !c.fetchedAt.IsZero() && time.Since(c.fetchedAt) < c.ttl {
		cached := c.cached
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("rates", func() (any, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		return Rates{}, err
	}
	return v.(Rates), nil
}

func (c *DolarAPIClient) fetch(ctx context.Context) (Rates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Rates{}, fmt.Errorf("build rate request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Rates{}, fmt.Errorf("query dolarapi: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Rates{}, fmt.Errorf("dolarapi status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Rates{}, fmt.Errorf("read dolarapi response: %w", err)
	}

	var monitors []monitor
	if err := json.Unmarshal(body, &monitors); err != nil {
		return Rates{}, fmt.Errorf("decode dolarapi response: %w", err)
	}

	var rates Rates
	for _, m := range monitors {
		switch strings.ToLower(m.Fuente) {
		case "oficial":
			rates.Official = m.Promedio
			rates.LastUpdate = m.FechaActualizacion
		case "paralelo":
			rates.Parallel = m.Promedio
		}
	}
	if rates.Official == 0 && rates.Parallel == 0 {
		return Rates{}, fmt.Errorf("dolarapi returned no usable monitors")
	}

	c.mu.Lock()
	c.cached = rates
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return rates, nil
}
