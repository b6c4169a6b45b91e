// Package metrics exposes catalog state as Prometheus metrics.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/productapi/internal/query"
	"github.com/vyrodovalexey/productapi/internal/store"
)

const collectTimeout = 5 * time.Second

// CatalogCollector reports the number of products per category. Values are
// read from the store at scrape time.
type CatalogCollector struct {
	store  store.Store
	logger *zap.Logger

	products *prometheus.Desc
	up       *prometheus.Desc
}

// NewCatalogCollector creates a collector backed by s.
func NewCatalogCollector(s store.Store, logger *zap.Logger) *CatalogCollector {
	return &CatalogCollector{
		store:  s,
		logger: logger,
		products: prometheus.NewDesc(
			"catalog_products",
			"Number of products in the catalog by category",
			[]string{"category"}, nil,
		),
		up: prometheus.NewDesc(
			"catalog_store_up",
			"Whether the last catalog scrape could read the store",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *CatalogCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.products
	ch <- c.up
}

// Collect implements prometheus.Collector.
func (c *CatalogCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	products, err := c.store.List(ctx)
	if err != nil {
		c.logger.Warn("catalog scrape failed", zap.Error(err))
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
	for category, count := range query.CategoryStats(products) {
		ch <- prometheus.MustNewConstMetric(c.products, prometheus.GaugeValue, float64(count), category)
	}
}
