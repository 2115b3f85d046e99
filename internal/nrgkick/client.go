package nrgkick

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"nrgkick-panel/internal/models"
)

const requestTimeout = 10 * time.Second

// Client talks to the local REST API of a single NRGKick charger.
type Client struct {
	device     models.DeviceConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewClient(device models.DeviceConfig, logger *logrus.Logger) (*Client, error) {
	if !device.Configured() {
		return nil, ErrNotConfigured
	}
	return &Client{
		device: device,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger,
	}, nil
}

// FetchDeviceInfo retrieves the static identity of the charger. All nested
// sections are requested in a single call.
func (c *Client) FetchDeviceInfo(ctx context.Context) (models.DeviceInfo, error) {
	query := url.Values{}
	for _, section := range []string{"general", "connector", "grid", "network", "versions"} {
		query.Set(section, "1")
	}

	doc, err := c.getDocument(ctx, "/info", query)
	if err != nil {
		return models.DeviceInfo{}, err
	}

	return normalizeDeviceInfo(doc), nil
}

// FetchLiveStatus retrieves control settings and live measurements
// concurrently and merges them into one status. If either call fails the
// whole refresh fails and no partial result is returned.
func (c *Client) FetchLiveStatus(ctx context.Context) (models.LiveStatus, error) {
	valuesQuery := url.Values{}
	for _, section := range []string{"general", "energy", "powerflow", "temperatures"} {
		valuesQuery.Set(section, "1")
	}

	var (
		wg                    sync.WaitGroup
		controlDoc, valuesDoc document
		controlErr, valuesErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		controlDoc, controlErr = c.getDocument(ctx, "/control", nil)
	}()
	go func() {
		defer wg.Done()
		valuesDoc, valuesErr = c.getDocument(ctx, "/values", valuesQuery)
	}()
	wg.Wait()

	if controlErr != nil {
		return models.LiveStatus{}, fmt.Errorf("fetch control: %w", controlErr)
	}
	if valuesErr != nil {
		return models.LiveStatus{}, fmt.Errorf("fetch values: %w", valuesErr)
	}

	status := models.LiveStatus{}
	normalizeValues(valuesDoc, &status)
	normalizeControl(controlDoc, &status)

	return status, nil
}

// SetChargePause pauses (true) or resumes (false) charging.
func (c *Client) SetChargePause(ctx context.Context, paused bool) error {
	value := "0"
	if paused {
		value = "1"
	}
	return c.sendControl(ctx, "charge_pause", value)
}

// SetCurrentLimit sets the charging current limit in amps. The device is the
// source of truth for rejecting out-of-range values.
func (c *Client) SetCurrentLimit(ctx context.Context, amps int) error {
	return c.sendControl(ctx, "current_set", strconv.Itoa(amps))
}

// SetPhaseCount switches the number of AC phases used for charging.
func (c *Client) SetPhaseCount(ctx context.Context, phases int) error {
	return c.sendControl(ctx, "phase_count", strconv.Itoa(phases))
}

// sendControl issues a single idempotent GET with exactly one query
// parameter. The device answers with the resulting settings object.
func (c *Client) sendControl(ctx context.Context, param, value string) error {
	query := url.Values{}
	query.Set(param, value)

	if _, err := c.getDocument(ctx, "/control", query); err != nil {
		return fmt.Errorf("set %s=%s: %w", param, value, err)
	}

	c.logger.Debugf("Command accepted: %s=%s", param, value)
	return nil
}

type document map[string]any

func (c *Client) getDocument(ctx context.Context, path string, query url.Values) (document, error) {
	endpoint := "http://" + c.device.Host + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.device.HasAuth() {
		req.SetBasicAuth(c.device.Username, c.device.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("request %s: status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var doc document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	// The device reports its own failures with a message field in an
	// otherwise successful response.
	if msg, ok := doc["message"].(string); ok && msg != "" {
		return nil, &DeviceError{Message: msg}
	}

	return doc, nil
}
