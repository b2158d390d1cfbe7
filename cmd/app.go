package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harvestsmart/harvestsmart/internal/metrics"
	"github.com/harvestsmart/harvestsmart/internal/telemetry"
	"github.com/harvestsmart/harvestsmart/internal/utils"
	"github.com/harvestsmart/harvestsmart/pkg/collection"
	"github.com/harvestsmart/harvestsmart/pkg/detection"
	"github.com/harvestsmart/harvestsmart/pkg/document"
	"github.com/harvestsmart/harvestsmart/pkg/report"
	"github.com/harvestsmart/harvestsmart/pkg/session"
	"github.com/harvestsmart/harvestsmart/pkg/store"
	"github.com/harvestsmart/harvestsmart/pkg/whttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app is everything a command needs, built from the loaded configuration.
type app struct {
	Store       store.Store
	StorePath   string
	Location    *time.Location
	Session     *session.Session
	Reporter    telemetry.Reporter
	Metrics     *metrics.Metrics
	Registry    *prometheus.Registry
	Renderer    *document.PDFRenderer
	Detector    *detection.Client
	Accumulator *report.Accumulator
	Controller  *report.Controller

	lock *utils.StoreLock
}

// newApp opens the configured store and wires the report components around it.
// With exclusive set, the store file is locked until close.
func newApp(cmd *cobra.Command, exclusive bool) (*app, error) {
	a := &app{}
	var err error

	a.Location, err = utils.LoadLocation(viper.GetString("report.timezone"))
	if err != nil {
		return nil, fmt.Errorf("report.timezone: %w", err)
	}

	backend := viper.GetString("store.backend")
	if err := checkBackend(backend); err != nil {
		return nil, err
	}
	if backend == "" || backend == store.BackendSQLite {
		a.StorePath, err = utils.GetAbsStorePath(viper.GetString("store.path"))
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(a.StorePath), 0o755); err != nil {
			return nil, err
		}
		if exclusive {
			a.lock, err = utils.NewStoreLock(a.StorePath)
			if err != nil {
				return nil, err
			}
			if err := a.lock.Lock(); err != nil {
				return nil, err
			}
		}
	}
	a.Store, err = store.Open(backend, a.StorePath)
	if err != nil {
		a.unlock()
		return nil, err
	}

	a.Reporter, err = telemetry.New(viper.GetString("sentry.dsn"), "harvestsmart@"+Version, utils.Log)
	if err != nil {
		utils.Log.Warnf("%v, errors will only be logged", err)
		a.Reporter = telemetry.LogReporter{Log: utils.Log}
	}

	a.Registry = prometheus.NewRegistry()
	a.Metrics, err = metrics.New(a.Registry)
	if err != nil {
		a.close()
		return nil, err
	}

	proxy, _ := cmd.Flags().GetString("proxy")
	insecure, _ := cmd.Flags().GetBool("insecure")
	if insecure {
		utils.Log.Warn("TLS certificate verification is disabled")
	}
	apiURL := viper.GetString("api.url")
	detectClient, err := newHTTPClient(proxy, insecure, viper.GetInt("api.retries"))
	if err != nil {
		a.close()
		return nil, err
	}
	collectClient, err := newHTTPClient(proxy, insecure, viper.GetInt("collection.retries"))
	if err != nil {
		a.close()
		return nil, err
	}

	a.Session = session.New(a.Store)
	a.Renderer = document.NewPDFRenderer(a.Location)
	a.Detector = detection.NewClient(apiURL, viper.GetString("detection.path"), detectClient)

	a.Accumulator, err = report.NewAccumulator(report.AccumulatorConfig{
		Store:    a.Store,
		Location: a.Location,
		Log:      utils.Log,
		Observer: a.Metrics,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.Controller, err = report.NewController(report.ControllerConfig{
		Store:        a.Store,
		Renderer:     a.Renderer,
		Submitter:    collection.NewClient(apiURL, viper.GetString("collection.path"), collectClient),
		Identity:     a.Session,
		Reporter:     a.Reporter,
		Location:     a.Location,
		Log:          utils.Log,
		Observer:     a.Metrics,
		DisplayLimit: viper.GetInt("report.display_limit"),
	})
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// checkBackend refuses stores that would not outlive the command. Every
// command runs in its own process, so a memory store is empty on each run.
func checkBackend(backend string) error {
	if backend == store.BackendMemory {
		return fmt.Errorf("store.backend %q does not persist between commands, use %q", backend, store.BackendSQLite)
	}
	return nil
}

func newHTTPClient(proxy string, insecure bool, retries int) (*retryablehttp.Client, error) {
	return whttp.NewClient(whttp.ClientOptions{
		Timeout:  viper.GetDuration("api.timeout"),
		RetryMax: retries,
		Proxy:    proxy,
		Insecure: insecure,
		Logger:   whttp.LogrusAdapter{Log: utils.Log},
	})
}

func (a *app) close() {
	if a.Reporter != nil {
		a.Reporter.Flush(2 * time.Second)
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			utils.Log.Warnf("Closing store: %v", err)
		}
	}
	a.unlock()
}

func (a *app) unlock() {
	if a.lock == nil {
		return
	}
	if err := a.lock.Unlock(); err != nil {
		utils.Log.Warnf("%v", err)
	}
}

// resolveDate turns a --date flag into a date key, defaulting to today.
func (a *app) resolveDate(date string) (string, error) {
	if date == "" {
		return a.Controller.Today(), nil
	}
	if !report.ValidDate(date) {
		return "", fmt.Errorf("bad date %q, expected YYYY-MM-DD", date)
	}
	return date, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
