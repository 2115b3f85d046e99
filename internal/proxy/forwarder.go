package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"nrgkick-panel/internal/models"
)

const forwardTimeout = 10 * time.Second

// Forwarder relays GET requests from the panel to the charger's local REST
// API, injecting basic-auth credentials and permissive CORS headers. It
// serves the /api/ surface:
//
//	GET /api/config               -> proxy configuration document
//	GET /api/<endpoint>[?params]  -> fixed-address mode
//	GET /api/<ip>/<endpoint>      -> path-addressed mode, IPv4 validated
//	OPTIONS *                     -> CORS preflight, 204
type Forwarder struct {
	device     models.DeviceConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewForwarder(device models.DeviceConfig, logger *logrus.Logger) *Forwarder {
	return &Forwarder{
		device: device,
		httpClient: &http.Client{
			Timeout: forwardTimeout,
		},
		logger: logger,
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type configBody struct {
	Configured bool   `json:"configured"`
	IP         string `json:"ip"`
	HasAuth    bool   `json:"hasAuth"`
}

func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Only GET requests are supported"})
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api")
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Missing endpoint"})
		return
	}

	if path == "config" {
		f.handleConfig(w)
		return
	}

	first, rest, _ := strings.Cut(path, "/")

	if looksLikeAddress(first) {
		// Path-addressed mode: the target device is named in the URL.
		// The address must be a valid dotted-quad before any outbound
		// request is attempted.
		if !ValidIPv4(first) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid device IP address: " + first})
			return
		}
		if rest == "" {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "Missing endpoint"})
			return
		}
		f.forward(w, r, first, "/"+rest)
		return
	}

	// Fixed-address mode: the target was configured at startup.
	if !f.device.Configured() {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "NRGKick device address not configured"})
		return
	}
	f.forward(w, r, f.device.Host, "/"+path)
}

// handleConfig exposes whether a device address and credentials are
// configured. The password itself never reaches the client.
func (f *Forwarder) handleConfig(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, configBody{
		Configured: f.device.Configured(),
		IP:         f.device.Host,
		HasAuth:    f.device.HasAuth(),
	})
}

func (f *Forwarder) forward(w http.ResponseWriter, r *http.Request, host, endpoint string) {
	target := "http://" + host + endpoint
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request", Details: err.Error()})
		return
	}
	req.Header.Set("Accept", "application/json")

	// Caller-supplied credentials take precedence over server-held ones.
	if auth := r.Header.Get("Authorization"); auth != "" {
		req.Header.Set("Authorization", auth)
	} else if f.device.HasAuth() {
		req.SetBasicAuth(f.device.Username, f.device.Password)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			f.logger.Warnf("Forward to %s timed out", target)
			writeJSON(w, http.StatusGatewayTimeout, errorBody{Error: "Connection to NRGKick device timed out"})
			return
		}
		f.logger.Warnf("Forward to %s failed: %v", target, err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "Failed to connect to NRGKick device", Details: err.Error()})
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		f.logger.Debugf("Relay body from %s: %v", target, err)
	}
}

// looksLikeAddress reports whether a path token is an address candidate
// rather than an endpoint name.
func looksLikeAddress(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return true
}

// ValidIPv4 reports whether s is a syntactically correct dotted-quad with
// every octet in 0..255.
func ValidIPv4(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, part := range parts {
		if part == "" || len(part) > 3 {
			return false
		}
		octet, err := strconv.Atoi(part)
		if err != nil || octet < 0 || octet > 255 {
			return false
		}
	}
	return true
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
