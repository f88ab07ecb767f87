package ec2

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// CheckIPURL answers with the caller's public IPv4 address.
const CheckIPURL = "https://checkip.amazonaws.com"

// IPResolver returns the caller's public IPv4 address.
type IPResolver func(ctx context.Context) (netip.Addr, error)

// CheckIP returns a resolver that asks url, retrying transient failures.
func CheckIP(url string) IPResolver {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil

	return func(ctx context.Context) (netip.Addr, error) {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return netip.Addr{}, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return netip.Addr{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return netip.Addr{}, fmt.Errorf("%s answered %s", url, resp.Status)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
		if err != nil {
			return netip.Addr{}, fmt.Errorf("reading %s: %w", url, err)
		}

		addr, err := netip.ParseAddr(strings.TrimSpace(string(body)))
		if err != nil {
			return netip.Addr{}, fmt.Errorf("%s answered %q, not an address", url, strings.TrimSpace(string(body)))
		}
		if !addr.Is4() {
			return netip.Addr{}, fmt.Errorf("%s answered %s, not an IPv4 address", url, addr)
		}
		return addr, nil
	}
}
