// Copyright © 2025 OpenCHAMI a Series of LF Projects, LLC
//
// SPDX-License-Identifier: MIT

package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/openchami/linbo-dc/internal/model"
	"github.com/openchami/linbo-dc/internal/validate"
)

// HTTPConfig holds configuration for the HTTP authority client.
type HTTPConfig struct {
	BaseURL     string
	Timeout     time.Duration
	CacheExpiry time.Duration
	AuthToken   string
}

// DefaultHTTPConfig returns sane defaults.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		BaseURL:     "http://localhost:8081",
		Timeout:     30 * time.Second,
		CacheExpiry: 5 * time.Minute,
	}
}

// HTTPAuthority implements Authority against an HTTP upstream inventory
// service, caching batch responses between calls within a sync tick.
type HTTPAuthority struct {
	cfg    HTTPConfig
	client *http.Client
	logger *log.Logger
	cache  *ttlCache
}

// NewHTTPAuthority constructs an HTTPAuthority.
func NewHTTPAuthority(cfg HTTPConfig, logger *log.Logger) *HTTPAuthority {
	if logger == nil {
		logger = log.New(log.Writer(), "upstream: ", log.LstdFlags)
	}
	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     30 * time.Second,
		},
	}
	return &HTTPAuthority{
		cfg:    cfg,
		client: client,
		logger: logger,
		cache:  newTTLCache(cfg.CacheExpiry),
	}
}

func (a *HTTPAuthority) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader *strings.Reader
	if body != nil {
		reader = strings.NewReader(string(body))
	} else {
		reader = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream request: %w", err)
	}
	if a.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.AuthToken)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// GetChanges fetches a cursor-based delta.
func (a *HTTPAuthority) GetChanges(ctx context.Context, cursor string) (Delta, error) {
	// A sync tick starts here; drop the previous tick's batch responses.
	a.cache.clear()
	req, err := a.newRequest(ctx, http.MethodGet, "/changes?cursor="+cursor, nil)
	if err != nil {
		return Delta{}, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return Delta{}, fmt.Errorf("upstream getChanges failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Delta{}, fmt.Errorf("upstream getChanges returned status %d", resp.StatusCode)
	}
	var delta Delta
	if err := json.NewDecoder(resp.Body).Decode(&delta); err != nil {
		return Delta{}, fmt.Errorf("failed to decode delta: %w", err)
	}
	return delta, nil
}

// BatchGetHosts fetches host bodies by MAC address, caching the result
// between calls within the same sync tick.
func (a *HTTPAuthority) BatchGetHosts(ctx context.Context, macs []string) ([]model.Host, error) {
	if len(macs) == 0 {
		return nil, nil
	}
	cacheKey := "hosts:" + strings.Join(macs, ",")
	if v, ok := a.cache.get(cacheKey); ok {
		return v.([]model.Host), nil
	}

	body, _ := json.Marshal(map[string][]string{"macs": macs})
	req, err := a.newRequest(ctx, http.MethodPost, "/hosts/batch", body)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream batchGetHosts failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream batchGetHosts returned status %d", resp.StatusCode)
	}
	var hosts []model.Host
	if err := json.NewDecoder(resp.Body).Decode(&hosts); err != nil {
		return nil, fmt.Errorf("failed to decode hosts: %w", err)
	}
	for i := range hosts {
		if err := validate.Struct(&hosts[i]); err != nil {
			return nil, fmt.Errorf("upstream host %q: %w", hosts[i].Hostname, err)
		}
	}
	a.cache.set(cacheKey, hosts)
	return hosts, nil
}

// BatchGetStartConfs fetches the raw body of each named upstream
// start.conf.
func (a *HTTPAuthority) BatchGetStartConfs(ctx context.Context, names []string) (map[string]string, error) {
	if len(names) == 0 {
		return map[string]string{}, nil
	}
	body, _ := json.Marshal(map[string][]string{"names": names})
	req, err := a.newRequest(ctx, http.MethodPost, "/startconfs/batch", body)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream batchGetStartConfs failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream batchGetStartConfs returned status %d", resp.StatusCode)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode start confs: %w", err)
	}
	return out, nil
}

// BatchGetConfigs fetches BootConfig bodies by name.
func (a *HTTPAuthority) BatchGetConfigs(ctx context.Context, names []string) ([]model.BootConfig, error) {
	if len(names) == 0 {
		return nil, nil
	}
	cacheKey := "configs:" + strings.Join(names, ",")
	if v, ok := a.cache.get(cacheKey); ok {
		return v.([]model.BootConfig), nil
	}

	body, _ := json.Marshal(map[string][]string{"names": names})
	req, err := a.newRequest(ctx, http.MethodPost, "/configs/batch", body)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream batchGetConfigs failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream batchGetConfigs returned status %d", resp.StatusCode)
	}
	var configs []model.BootConfig
	if err := json.NewDecoder(resp.Body).Decode(&configs); err != nil {
		return nil, fmt.Errorf("failed to decode configs: %w", err)
	}
	for i := range configs {
		if err := validate.Struct(&configs[i]); err != nil {
			return nil, fmt.Errorf("upstream config %q: %w", configs[i].Name, err)
		}
	}
	a.cache.set(cacheKey, configs)
	return configs, nil
}

// GetDHCPExport fetches the DHCP export body and its ETag.
func (a *HTTPAuthority) GetDHCPExport(ctx context.Context) (DHCPExport, error) {
	req, err := a.newRequest(ctx, http.MethodGet, "/dhcp/export", nil)
	if err != nil {
		return DHCPExport{}, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return DHCPExport{}, fmt.Errorf("upstream getDhcpExport failed: %w", err)
	}
	defer resp.Body.Close()
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, rerr := resp.Body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if rerr != nil {
			break
		}
	}
	return DHCPExport{
		Status:  resp.StatusCode,
		Content: buf,
		ETag:    resp.Header.Get("ETag"),
	}, nil
}

// CheckHealth verifies the upstream authority is reachable.
func (a *HTTPAuthority) CheckHealth(ctx context.Context) error {
	req, err := a.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("upstream health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream health check returned status %d", resp.StatusCode)
	}
	return nil
}

// ClearCache drops every cached batch response.
func (a *HTTPAuthority) ClearCache() {
	a.cache.clear()
}
