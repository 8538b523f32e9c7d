package connectivity

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vietddude/shield/internal/core/domain"
)

// Prober checks service reachability and reports the round-trip time.
type Prober interface {
	Name() string
	Probe(ctx context.Context) (time.Duration, error)
}

// InterfaceChecker reports whether the local machine has a usable network
// link at all. When it reports offline the monitor short-circuits without
// probing.
type InterfaceChecker interface {
	Online() bool
}

// InterfaceCheckerFunc adapts a function to the InterfaceChecker interface.
type InterfaceCheckerFunc func() bool

func (f InterfaceCheckerFunc) Online() bool { return f() }

// SystemInterfaceChecker inspects the OS network interfaces. The machine is
// considered online when any non-loopback interface is up with an address.
type SystemInterfaceChecker struct{}

func (SystemInterfaceChecker) Online() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		// Cannot enumerate interfaces; let the probe decide.
		return true
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}

	return false
}

// HTTPProber probes a health endpoint over HTTP.
type HTTPProber struct {
	name       string
	endpoint   string
	httpClient *http.Client
}

// NewHTTPProber creates an HTTP prober against a health URL.
func NewHTTPProber(name, endpoint string, timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		name:     name,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (p *HTTPProber) Name() string { return p.name }

// Probe issues a GET against the health endpoint. Any response below 500
// counts as reachable; the service answering at all is what matters here.
func (p *HTTPProber) Probe(ctx context.Context) (time.Duration, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return 0, domain.NewError(domain.ErrKindValidation, err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, domain.NewError(domain.KindOf(err), err)
	}
	defer resp.Body.Close()

	rtt := time.Since(start)

	if resp.StatusCode >= http.StatusInternalServerError {
		return rtt, domain.Errorf(
			domain.ErrKindServiceUnavailable,
			"health endpoint returned %d",
			resp.StatusCode,
		)
	}

	return rtt, nil
}

// GRPCProber probes a service via the standard gRPC health-checking protocol.
type GRPCProber struct {
	name    string
	service string
	conn    *grpc.ClientConn
}

// NewGRPCProber creates a prober for the given gRPC endpoint. The connection
// is lazy; the first Probe triggers the actual dial.
func NewGRPCProber(name, endpoint, service string) (*GRPCProber, error) {
	target := endpoint
	var opts []grpc.DialOption

	if strings.HasPrefix(endpoint, "https://") || strings.HasSuffix(endpoint, ":443") {
		creds := credentials.NewTLS(&tls.Config{})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		target = strings.TrimPrefix(target, "https://")
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		target = strings.TrimPrefix(target, "http://")
	}

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target, err)
	}

	return &GRPCProber{name: name, service: service, conn: conn}, nil
}

func (p *GRPCProber) Name() string { return p.name }

func (p *GRPCProber) Probe(ctx context.Context) (time.Duration, error) {
	start := time.Now()

	resp, err := healthpb.NewHealthClient(p.conn).Check(ctx, &healthpb.HealthCheckRequest{
		Service: p.service,
	})
	if err != nil {
		return 0, domain.NewError(domain.KindOf(err), err)
	}

	rtt := time.Since(start)

	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return rtt, domain.Errorf(
			domain.ErrKindServiceUnavailable,
			"service health is %s",
			resp.GetStatus(),
		)
	}

	return rtt, nil
}

// Close releases the underlying connection.
func (p *GRPCProber) Close() error {
	return p.conn.Close()
}
