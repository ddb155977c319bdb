package gateway

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/yllada/claw-manager/common"
	"github.com/yllada/claw-manager/config"
)

// Endpoint is where the gateway is expected to listen.
type Endpoint struct {
	Host      string
	Port      int
	BaseURL   string
	AuthToken string
}

// NewEndpoint builds an Endpoint, deriving BaseURL from host and port.
func NewEndpoint(host string, port int, token string) Endpoint {
	if host == "" {
		host = common.DefaultGatewayHost
	}
	if port <= 0 || port > 65535 {
		port = common.DefaultGatewayPort
	}
	return Endpoint{
		Host:      host,
		Port:      port,
		BaseURL:   "http://" + net.JoinHostPort(host, strconv.Itoa(port)),
		AuthToken: token,
	}
}

// DefaultEndpoint is 127.0.0.1:18789 without a token.
func DefaultEndpoint() Endpoint {
	return NewEndpoint(common.DefaultGatewayHost, common.DefaultGatewayPort, "")
}

// HealthURL is the liveness URL probed by the supervisor.
func (e Endpoint) HealthURL() string {
	return e.BaseURL + common.HealthPath
}

// WebURL is the browser URL of the gateway's control UI, carrying the
// token when one is configured.
func (e Endpoint) WebURL() string {
	if e.AuthToken == "" {
		return e.BaseURL + "/"
	}
	return e.BaseURL + "/?token=" + url.QueryEscape(e.AuthToken)
}

// Equal compares all fields.
func (e Endpoint) Equal(o Endpoint) bool {
	return e == o
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s (port %d)", e.BaseURL, e.Port)
}

// ConfigSource is the part of the config store the supervisor reads.
type ConfigSource interface {
	LoadConfig() (*config.Document, error)
}

// EndpointResolver reads the current endpoint.
type EndpointResolver func() (Endpoint, error)

// StoreResolver builds a resolver over a config source. Read failures
// return the default-port endpoint together with ErrEndpointUnavailable.
func StoreResolver(src ConfigSource, host string) EndpointResolver {
	return func() (Endpoint, error) {
		if src == nil {
			return NewEndpoint(host, common.DefaultGatewayPort, ""), nil
		}
		doc, err := src.LoadConfig()
		if err != nil {
			return NewEndpoint(host, common.DefaultGatewayPort, ""),
				fmt.Errorf("%w: %v", common.ErrEndpointUnavailable, err)
		}
		return NewEndpoint(host, doc.Port(), doc.GatewayToken()), nil
	}
}

// StaticResolver always returns ep.
func StaticResolver(ep Endpoint) EndpointResolver {
	return func() (Endpoint, error) { return ep, nil }
}
