// Package health contains code for health checks.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// nolint:gochecknoglobals
var (
	version = "dev"
	commit  = "undefined"
)

// GetVersion returns service's version and commit.
func GetVersion() string {
	return fmt.Sprintf("%s-%s", version, commit)
}

// VersionResponse ...
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// Pinger pings a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

type namedPinger struct {
	name string
	p    func(ctx context.Context) error
}

// Check is a named pinger.
type Check interface {
	Pinger
	Name() string
}

func (p namedPinger) Ping(ctx context.Context) error {
	return p.p(ctx)
}

func (p namedPinger) Name() string {
	return p.name
}

// Named returns pinger with name shown in response.
func Named(name string, p Pinger) Check {
	return namedPinger{name: name, p: p.Ping}
}

// NamedFunc wraps ping function, e.g. (sql.DB).PingContext.
func NamedFunc(name string, f func(ctx context.Context) error) Check {
	return namedPinger{name: name, p: f}
}

// Response ...
type Response struct {
	VersionResponse
	Errors map[string]string `json:"errors,omitempty"`
}

// Handler returns 200 when every check passes and 503 otherwise.
func Handler(timeout time.Duration, checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		var (
			gr errgroup.Group
			mu sync.Mutex
		)

		resp := Response{
			VersionResponse: VersionResponse{Version: version, Commit: commit},
			Errors:          map[string]string{},
		}

		for i := range checks {
			c := checks[i]
			gr.Go(func() error {
				if err := c.Ping(ctx); err != nil {
					logrus.WithError(err).WithField("check", c.Name()).Error("health check failed")

					mu.Lock()
					resp.Errors[c.Name()] = err.Error()
					mu.Unlock()
				}
				return nil
			})
		}

		_ = gr.Wait()

		status := http.StatusOK
		if len(resp.Errors) > 0 {
			status = http.StatusServiceUnavailable
		}

		data, _ := json.Marshal(resp) // nolint:errchkjson
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(data)
	}
}
