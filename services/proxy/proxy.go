package proxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"sjsage522/jobscraper/logger"
)

// ProxyInfo holds a proxy with the result of its last check
type ProxyInfo struct {
	URL      *url.URL
	Latency  time.Duration
	LastTest time.Time
	Working  bool
}

// Manager keeps the working proxies from a configured list and an optional
// remote list, fastest first, and hands them out in rotation.
type Manager struct {
	configured     []string
	sourceURL      string
	client         *http.Client
	dialTimeout    time.Duration
	updateInterval time.Duration

	mutex      sync.Mutex
	proxies    []ProxyInfo
	next       int
	lastUpdate time.Time
	log        *logger.Logger
}

// NewManager creates a manager for the given proxy entries and list URL.
// Entries are "scheme://host:port" or bare "host:port" (SOCKS5).
func NewManager(configured []string, sourceURL string) *Manager {
	return &Manager{
		configured:     configured,
		sourceURL:      sourceURL,
		client:         &http.Client{Timeout: 30 * time.Second},
		dialTimeout:    5 * time.Second,
		updateInterval: 30 * time.Minute,
		log:            logger.ForProxy(),
	}
}

// Enabled reports whether any proxy source is configured
func (m *Manager) Enabled() bool {
	return m != nil && (len(m.configured) > 0 || m.sourceURL != "")
}

// Refresh re-tests the proxies when the last update is older than the update
// interval. Existing proxies are kept when nothing new is usable.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if time.Since(m.lastUpdate) < m.updateInterval && len(m.proxies) > 0 {
		return nil
	}

	candidates := parseProxyText(strings.Join(m.configured, "\n"))
	if m.sourceURL != "" {
		fetched, err := m.fetchList(ctx)
		if err != nil {
			m.log.Warn().Err(err).Str("url", m.sourceURL).Msg("Failed to fetch proxy list")
		}
		candidates = append(candidates, fetched...)
	}
	if len(candidates) == 0 {
		if len(m.proxies) > 0 {
			return nil
		}
		return fmt.Errorf("no proxies configured")
	}

	working := m.testAll(ctx, candidates)
	if len(working) == 0 {
		if len(m.proxies) > 0 {
			m.log.Warn().Int("existing_count", len(m.proxies)).Msg("No working proxies found, keeping existing ones")
			return nil
		}
		return fmt.Errorf("none of %d proxies is reachable", len(candidates))
	}

	m.proxies = working
	m.next = 0
	m.lastUpdate = time.Now()
	m.log.Info().
		Int("working", len(working)).
		Int("tested", len(candidates)).
		Dur("fastest", working[0].Latency).
		Msg("Proxy list updated")
	return nil
}

// Next returns the next working proxy in rotation, or nil when there is none
func (m *Manager) Next() *url.URL {
	if m == nil {
		return nil
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if len(m.proxies) == 0 {
		return nil
	}
	p := m.proxies[m.next%len(m.proxies)]
	m.next++
	return p.URL
}

// Proxies returns a copy of the working proxies, fastest first
func (m *Manager) Proxies() []ProxyInfo {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]ProxyInfo(nil), m.proxies...)
}

func (m *Manager) fetchList(ctx context.Context) ([]*url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.sourceURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/plain,*/*")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("proxy list status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if strings.Contains(string(body), "<html") {
		return nil, fmt.Errorf("proxy list is an HTML page")
	}
	return parseProxyText(string(body)), nil
}

// testAll checks the candidates concurrently and returns the working ones by latency
func (m *Manager) testAll(ctx context.Context, candidates []*url.URL) []ProxyInfo {
	results := make([]ProxyInfo, len(candidates))
	sem := make(chan struct{}, 20)
	var wg sync.WaitGroup

	for i, u := range candidates {
		wg.Add(1)
		go func(i int, u *url.URL) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = m.testProxyLatency(ctx, u)
		}(i, u)
	}
	wg.Wait()

	var working []ProxyInfo
	for _, p := range results {
		if p.Working {
			working = append(working, p)
		}
	}
	sort.SliceStable(working, func(i, j int) bool {
		return working[i].Latency < working[j].Latency
	})
	return working
}

// testProxyLatency connects to the proxy and, for SOCKS5, performs the greeting
func (m *Manager) testProxyLatency(ctx context.Context, u *url.URL) ProxyInfo {
	info := ProxyInfo{URL: u, LastTest: time.Now()}

	start := time.Now()
	dialer := net.Dialer{Timeout: m.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", u.Host)
	if err != nil {
		m.log.Debug().Str("proxy", u.Host).Err(err).Msg("TCP connection failed")
		return info
	}
	defer conn.Close()

	if strings.HasPrefix(u.Scheme, "socks5") && !socks5Handshake(conn) {
		m.log.Debug().Str("proxy", u.Host).Msg("SOCKS5 handshake failed")
		return info
	}

	info.Working = true
	info.Latency = time.Since(start)
	return info
}

// socks5Handshake sends a no-auth greeting and expects the server to accept it
func socks5Handshake(conn net.Conn) bool {
	conn.SetDeadline(time.Now().Add(3 * time.Second))
	defer conn.SetDeadline(time.Time{})

	// VER=5, NMETHODS=1, METHODS=no authentication
	if _, err := conn.Write([]byte{0x05, 0x01, 0x00}); err != nil {
		return false
	}
	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return false
	}
	return resp[0] == 0x05 && resp[1] == 0x00
}

// parseProxyText reads one proxy per line, skipping blanks, comments and
// entries without a port
func parseProxyText(text string) []*url.URL {
	var proxies []*url.URL
	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.Contains(line, "://") {
			line = "socks5://" + line
		}
		u, err := url.Parse(line)
		if err != nil || u.Hostname() == "" || u.Port() == "" {
			continue
		}
		switch u.Scheme {
		case "http", "https", "socks5", "socks5h":
		default:
			continue
		}
		if seen[u.String()] {
			continue
		}
		seen[u.String()] = true
		proxies = append(proxies, u)
	}
	return proxies
}
