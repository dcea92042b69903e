package registry

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/conneroisu/cascade/internal/errors"
	"github.com/conneroisu/cascade/internal/types"
)

// DefaultIndexURL is the crates.io sparse index.
const DefaultIndexURL = "https://index.crates.io"

// SparseIndex reads package versions from a Cargo sparse registry index.
type SparseIndex struct {
	baseURL   string
	client    *http.Client
	userAgent string
}

// NewSparseIndex creates an index client. A zero timeout means 30 seconds.
func NewSparseIndex(baseURL string, timeout time.Duration, userAgent string) *SparseIndex {
	if baseURL == "" {
		baseURL = DefaultIndexURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if userAgent == "" {
		userAgent = "cascade"
	}
	return &SparseIndex{
		baseURL:   strings.TrimRight(strings.TrimPrefix(baseURL, "sparse+"), "/"),
		client:    &http.Client{Timeout: timeout, Transport: newTransport()},
		userAgent: userAgent,
	}
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// IndexPath returns the index file path for a package name.
func IndexPath(name string) string {
	name = strings.ToLower(name)
	switch len(name) {
	case 0:
		return ""
	case 1:
		return "1/" + name
	case 2:
		return "2/" + name
	case 3:
		return "3/" + name[:1] + "/" + name
	default:
		return name[:2] + "/" + name[2:4] + "/" + name
	}
}

type indexLine struct {
	Name   string `json:"name"`
	Vers   string `json:"vers"`
	Yanked bool   `json:"yanked"`
}

// Query fetches the index file of name. A missing file means the package
// was never published and yields no versions.
func (s *SparseIndex) Query(ctx context.Context, name string) ([]types.VersionRecord, error) {
	url := s.baseURL + "/" + IndexPath(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapNetwork(err, errors.ErrCodeRegistryUnavailable, "building index request").WithPackage(name)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.WrapNetwork(err, errors.ErrCodeRegistryUnavailable, "querying index").WithPackage(name)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusGone, http.StatusForbidden:
		return nil, nil
	default:
		return nil, errors.NewNetworkError(errors.ErrCodeRegistryUnavailable,
			fmt.Sprintf("index returned %s", resp.Status), nil).WithPackage(name)
	}

	var records []types.VersionRecord
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry indexLine
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, errors.WrapNetwork(err, errors.ErrCodeRegistryUnavailable, "decoding index entry").WithPackage(name)
		}
		records = append(records, types.VersionRecord{Version: entry.Vers, Yanked: entry.Yanked})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WrapNetwork(err, errors.ErrCodeRegistryUnavailable, "reading index").WithPackage(name)
	}
	return records, nil
}
