// Package devproxy fronts locally running services with a single listener that
// routes by host name: <service>.localhost reaches that service's port.
package devproxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"vinr.eu/launchpad/internal/errs"
	"vinr.eu/launchpad/internal/logger"
)

var (
	ErrListenFailed = errs.Kind(errs.ErrIO, "devproxy: listen failed")
)

const HostSuffix = ".localhost"

type Route struct {
	Service string
	Port    int
}

type Proxy struct {
	routes  map[string]Route
	proxies map[string]*httputil.ReverseProxy
	engine  *gin.Engine
}

// New builds a proxy for routes. Requests for unknown hosts get 404.
func New(routes []Route) *Proxy {
	gin.SetMode(gin.ReleaseMode)
	p := &Proxy{
		routes:  make(map[string]Route, len(routes)),
		proxies: make(map[string]*httputil.ReverseProxy, len(routes)),
		engine:  gin.New(),
	}
	for _, r := range routes {
		host := r.Service + HostSuffix
		target := &url.URL{Scheme: "http", Host: fmt.Sprintf("127.0.0.1:%d", r.Port)}
		p.routes[host] = r
		p.proxies[host] = httputil.NewSingleHostReverseProxy(target)
	}

	p.engine.Use(gin.Recovery(), logger.Middleware(p.service))
	p.engine.NoRoute(p.forward)
	return p
}

func (p *Proxy) Handler() http.Handler {
	return p.engine
}

func (p *Proxy) service(host string) (string, bool) {
	r, ok := p.routes[hostname(host)]
	return r.Service, ok
}

func (p *Proxy) forward(c *gin.Context) {
	host := hostname(c.Request.Host)
	proxy, ok := p.proxies[host]
	if !ok {
		logger.Debug(c, "no route for host", "host", host)
		c.String(http.StatusNotFound, "no service for host %s\n", host)
		return
	}
	logger.Debug(c, "proxying request", "host", host, "path", c.Request.URL.Path)
	proxy.ServeHTTP(c.Writer, c.Request)
}

// Serve listens on addr until ctx is cancelled.
func (p *Proxy) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errs.WrapMsgErr(ErrListenFailed, addr, err)
	}
	srv := &http.Server{Handler: p.engine, ReadHeaderTimeout: 10 * time.Second}
	logger.Info(ctx, "dev proxy listening", "addr", ln.Addr().String(), "services", len(p.routes))

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	select {
	case err := <-done:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errs.WrapMsgErr(ErrListenFailed, addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "failed to shut down dev proxy", "error", err)
		}
		logger.Info(ctx, "dev proxy stopped")
		return nil
	}
}

func hostname(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(host)
}
