// Package connectivity checks that the dashboard's backing services answer.
package connectivity

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/payables-dashboard/internal/sqlproxy"
	"github.com/go-sql-driver/mysql"
)

// Result is the outcome of one probe.
type Result struct {
	Name    string        `json:"name"`
	Target  string        `json:"target"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ns"`
	Error   string        `json:"error,omitempty"`
}

// Prober checks a single dependency.
type Prober interface {
	Name() string
	Target() string
	Ping(ctx context.Context) error
}

// Checker runs a set of probes concurrently.
type Checker struct {
	probes  []Prober
	timeout time.Duration
}

// NewChecker creates a checker. A timeout <= 0 leaves probes bounded only by
// the caller's context.
func NewChecker(timeout time.Duration, probes ...Prober) *Checker {
	return &Checker{probes: probes, timeout: timeout}
}

// Run executes every probe and returns results in probe order.
func (c *Checker) Run(ctx context.Context) []Result {
	results := make([]Result, len(c.probes))

	var wg sync.WaitGroup
	for i, p := range c.probes {
		wg.Add(1)
		go func(i int, p Prober) {
			defer wg.Done()
			results[i] = c.run(ctx, p)
		}(i, p)
	}
	wg.Wait()

	return results
}

func (c *Checker) run(ctx context.Context, p Prober) Result {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	err := p.Ping(ctx)
	res := Result{
		Name:    p.Name(),
		Target:  p.Target(),
		OK:      err == nil,
		Latency: time.Since(start),
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// AllOK reports whether every result succeeded.
func AllOK(results []Result) bool {
	for _, r := range results {
		if !r.OK {
			return false
		}
	}
	return true
}

// QueryServiceProbe sends a trivial statement to the SQL query service.
type QueryServiceProbe struct {
	client *sqlproxy.Client
	url    string
}

// NewQueryServiceProbe creates a probe for client, reported under url.
func NewQueryServiceProbe(client *sqlproxy.Client, url string) *QueryServiceProbe {
	return &QueryServiceProbe{client: client, url: url}
}

func (p *QueryServiceProbe) Name() string   { return "query_service" }
func (p *QueryServiceProbe) Target() string { return p.url }

func (p *QueryServiceProbe) Ping(ctx context.Context) error {
	if _, err := p.client.Query(ctx, "select 1"); err != nil {
		return fmt.Errorf("QueryServiceProbe: %w", err)
	}
	return nil
}

// MySQLProbe opens a short-lived connection to the auxiliary MySQL database.
type MySQLProbe struct {
	dsn  string
	addr string
}

// NewMySQLProbe validates dsn and creates a probe for it.
func NewMySQLProbe(dsn string) (*MySQLProbe, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewMySQLProbe: parse dsn: %w", err)
	}
	return &MySQLProbe{dsn: cfg.FormatDSN(), addr: cfg.Addr}, nil
}

func (p *MySQLProbe) Name() string   { return "mysql" }
func (p *MySQLProbe) Target() string { return p.addr }

func (p *MySQLProbe) Ping(ctx context.Context) error {
	db, err := sql.Open("mysql", p.dsn)
	if err != nil {
		return fmt.Errorf("MySQLProbe: open: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("MySQLProbe: ping: %w", err)
	}
	return nil
}
