package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/payables-dashboard/internal/config"
	"github.com/dvloznov/payables-dashboard/internal/connectivity"
	"github.com/dvloznov/payables-dashboard/internal/dashboard"
	infraBQ "github.com/dvloznov/payables-dashboard/internal/infra/bigquery"
	"github.com/dvloznov/payables-dashboard/internal/sqlproxy"
	"github.com/rs/zerolog"
)

const probeTimeout = 10 * time.Second

// newSource builds the configured data source. The returned close function
// is always safe to call.
func newSource(ctx context.Context, c *config.Config, log zerolog.Logger) (dashboard.Source, func(), error) {
	switch c.Source {
	case config.SourceBigQuery:
		repo, err := infraBQ.NewInvoiceRepository(ctx, c.BigQuery.Project, c.BigQuery.Dataset, c.Query.AccountCode)
		if err != nil {
			return nil, func() {}, fmt.Errorf("failed to create BigQuery source: %w", err)
		}
		log.Info().
			Str("project", c.BigQuery.Project).
			Str("dataset", c.BigQuery.Dataset).
			Msg("Using BigQuery source")
		return repo, func() {
			if err := repo.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close BigQuery client")
			}
		}, nil
	default:
		log.Info().Str("url", c.Query.URL).Msg("Using SQL query service source")
		return sqlproxy.NewClient(c.Query.URL, c.Query.AccountCode, c.Query.Timeout, log), func() {}, nil
	}
}

// newChecker builds the connection probe for the configured services.
func newChecker(c *config.Config, log zerolog.Logger) (*connectivity.Checker, error) {
	var probes []connectivity.Prober
	if c.Query.URL != "" {
		client := sqlproxy.NewClient(c.Query.URL, c.Query.AccountCode, probeTimeout, log)
		probes = append(probes, connectivity.NewQueryServiceProbe(client, c.Query.URL))
	}
	if c.MySQL.DSN != "" {
		p, err := connectivity.NewMySQLProbe(c.MySQL.DSN)
		if err != nil {
			return nil, err
		}
		probes = append(probes, p)
	}
	return connectivity.NewChecker(probeTimeout, probes...), nil
}
