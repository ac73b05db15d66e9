package transport

import (
	"time"

	"github.com/valyala/fasthttp"
)

// Pinger issues low-allocation HTTP health-check requests against a
// connection's keep-alive endpoint, feeding ConnHealth.RecordSuccess/
// RecordFailure. Grounded on the teacher's use of fasthttp for its
// outbound traffic (fasthttp.Client reuses connections and avoids
// net/http's per-request allocations, matching the keep-alive ping's
// high-frequency, low-payload shape).
type Pinger struct {
	client  *fasthttp.Client
	timeout time.Duration
}

func NewPinger(timeout time.Duration) *Pinger {
	return &Pinger{client: &fasthttp.Client{}, timeout: timeout}
}

// Ping performs a GET against url and reports success (2xx) plus the
// observed latency.
func (p *Pinger) Ping(url string) (ok bool, latency time.Duration, err error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	start := time.Now()
	err = p.client.DoTimeout(req, resp, p.timeout)
	latency = time.Since(start)
	if err != nil {
		return false, latency, err
	}
	status := resp.StatusCode()
	return status >= 200 && status < 300, latency, nil
}

// PingAndRecord performs a Ping and updates h accordingly, so a caller's
// keep-alive loop can drive ConnHealth directly off real pings.
func (p *Pinger) PingAndRecord(url string, h *ConnHealth) {
	ok, latency, err := p.Ping(url)
	if err != nil || !ok {
		h.RecordFailure()
		return
	}
	h.RecordSuccess(latency)
}
