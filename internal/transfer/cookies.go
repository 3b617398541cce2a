package transfer

import (
	"bufio"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"downie/internal/services"
)

const httpOnlyPrefix = "#HttpOnly_"

// LoadCookieJar reads a Netscape-format cookies file (the format written by
// browsers' export extensions and by yt-dlp) into a cookie jar. Expired
// cookies are skipped.
func LoadCookieJar(path string) (http.CookieJar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidInput, "transfer", "cookies", "open cookies file", err)
	}
	defer file.Close()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	now := time.Now()
	byOrigin := map[string][]*http.Cookie{}
	var origins []*url.URL
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			line = strings.TrimPrefix(line, httpOnlyPrefix)
			httpOnly = true
		}
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			return nil, services.Wrap(services.ErrInvalidInput, "transfer", "cookies",
				fmt.Sprintf("%s:%d: expected 7 tab-separated fields", path, lineNo), nil)
		}
		domain := strings.TrimSpace(fields[0])
		includeSub := strings.EqualFold(fields[1], "TRUE")
		secure := strings.EqualFold(fields[3], "TRUE")
		expiry, _ := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64)
		if expiry > 0 && time.Unix(expiry, 0).Before(now) {
			continue
		}

		cookie := &http.Cookie{
			Name:     fields[5],
			Value:    fields[6],
			Path:     fields[2],
			Secure:   secure,
			HttpOnly: httpOnly,
		}
		if includeSub {
			cookie.Domain = domain
		}
		if expiry > 0 {
			cookie.Expires = time.Unix(expiry, 0)
		}

		scheme := "http"
		if secure {
			scheme = "https"
		}
		host := strings.TrimPrefix(domain, ".")
		key := scheme + "://" + host
		if _, ok := byOrigin[key]; !ok {
			origins = append(origins, &url.URL{Scheme: scheme, Host: host, Path: "/"})
		}
		byOrigin[key] = append(byOrigin[key], cookie)
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrInvalidInput, "transfer", "cookies", "read cookies file", err)
	}

	for _, origin := range origins {
		jar.SetCookies(origin, byOrigin[origin.Scheme+"://"+origin.Host])
	}
	return jar, nil
}
