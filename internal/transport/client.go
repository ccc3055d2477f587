package transport

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"

	"opacbridge/internal/components/assert"
	"opacbridge/internal/components/telemetry"
	"opacbridge/lib/util/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_get  = "client.get"
	report_client_post = "client.post"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

type Options struct {
	Timeout time.Duration `json:"timeout"`
	// RequestsPerSecond limits the request rate, 0 means 2 per second.
	RequestsPerSecond float64 `json:"requests_per_second"`
	UserAgent         string  `json:"user_agent"`
	BypassCloudflare  bool    `json:"bypass_cloudflare"`
	// DumpDir, when set, receives a copy of every response.
	DumpDir string `json:"dump_dir"`
}

// Client is a Transport over resty. One Client is one session, its cookie
// jar keeps the backend login.
type Client struct {
	http *resty.Client
	tel  telemetry.API
}

func New(opts Options, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("transport", tel)

	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	httpClient := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	if opts.BypassCloudflare {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	httpClient.SetHeader("user-agent", opts.UserAgent)
	httpClient.SetTimeout(opts.Timeout)

	burst := int(opts.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel, "opacbridge/transport")

	if opts.DumpDir != "" {
		out, err := restyutil.NewFilesystemOutput(opts.DumpDir)
		if err != nil {
			return nil, fmt.Errorf("dump dir: %w", err)
		}
		out.Dump(httpClient)
	}

	return &Client{http: httpClient, tel: tel}, nil
}

// ResetSession drops all cookies.
func (c *Client) ResetSession() error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	c.http.SetCookieJar(jar)
	return nil
}

func (c *Client) Get(ctx context.Context, url string, enc string) ([]byte, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		c.tel.ReportBroken(report_client_get, err, url)
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	return c.body(res, enc)
}

func (c *Client) Post(ctx context.Context, url string, form url.Values, enc string) ([]byte, error) {
	body, err := encodeForm(form, enc)
	if err != nil {
		return nil, err
	}
	contentType := "application/x-www-form-urlencoded"
	if enc != "" {
		contentType += "; charset=" + enc
	}
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("content-type", contentType).
		SetBody(body).
		Post(url)
	if err != nil {
		c.tel.ReportBroken(report_client_post, err, url)
		return nil, fmt.Errorf("post %s: %w", url, err)
	}
	return c.body(res, enc)
}

func (c *Client) body(res *resty.Response, enc string) ([]byte, error) {
	if res.IsError() {
		return nil, &StatusError{
			Method: res.Request.Method,
			URL:    res.Request.URL,
			Code:   res.StatusCode(),
		}
	}
	return decodeBody(res.Body(), enc)
}
