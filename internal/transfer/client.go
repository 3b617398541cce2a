package transfer

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"downie/internal/model"
	"downie/internal/services"
)

// ClientOptions describes the HTTP client used for one job.
type ClientOptions struct {
	Proxy          string
	CookiesFile    string
	MaxConnections int
	TLSConfig      *tls.Config
}

// NewHTTPClient builds a client honouring the proxy and cookie settings. It has
// no overall timeout; callers bound requests with their context.
func NewHTTPClient(opts ClientOptions) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = time.Minute
	if opts.MaxConnections > 0 {
		transport.MaxConnsPerHost = opts.MaxConnections
		transport.MaxIdleConnsPerHost = opts.MaxConnections
	}
	if opts.TLSConfig != nil {
		transport.TLSClientConfig = opts.TLSConfig.Clone()
	}
	if proxy := strings.TrimSpace(opts.Proxy); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil || proxyURL.Host == "" {
			return nil, services.Wrap(services.ErrInvalidInput, "transfer", "proxy",
				fmt.Sprintf("invalid proxy %q", model.RedactURL(proxy)), err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client := &http.Client{Transport: transport}
	if opts.CookiesFile != "" {
		jar, err := LoadCookieJar(opts.CookiesFile)
		if err != nil {
			return nil, err
		}
		client.Jar = jar
	} else {
		jar, _ := cookiejar.New(nil)
		client.Jar = jar
	}
	return client, nil
}
