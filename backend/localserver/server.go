package localserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Endpoint is an HTTP handler served on a loopback address
type Endpoint struct {
	Name     string
	Addr     string
	Handler  http.Handler
	MaxConns int
}

// Serve listens on the endpoint address and serves until ctx is done
func Serve(ctx context.Context, ep Endpoint) error {
	ln, err := net.Listen("tcp", ep.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", ep.Addr, err)
	}
	return serveListener(ctx, ep, ln)
}

func serveListener(ctx context.Context, ep Endpoint, ln net.Listener) error {
	if ep.MaxConns > 0 {
		ln = netutil.LimitListener(ln, ep.MaxConns)
	}

	srv := &http.Server{
		Handler:           ep.Handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	log.Infof("%s server started on %s", ep.Name, ln.Addr())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down %s server: %w", ep.Name, err)
		}
		log.Debugf("%s server stopped", ep.Name)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// RunAll serves every endpoint until ctx is done. An endpoint failing to
// bind does not stop the others; all failures are returned together.
func RunAll(ctx context.Context, endpoints ...Endpoint) error {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		result *multierror.Error
	)

	for _, ep := range endpoints {
		g.Go(func() error {
			if err := Serve(ctx, ep); err != nil {
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("%s server: %w", ep.Name, err))
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()
	return result.ErrorOrNil()
}
