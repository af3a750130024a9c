// Package di wires the arbitrage core's databases, repositories,
// services and background jobs together, mirroring the teacher's
// staged Container/InitializeDatabases/InitializeServices/RegisterJobs
// split so every collaborator is constructed in one place and in
// dependency order.
package di

import (
	"github.com/aristath/inarbit/internal/database"
	"github.com/aristath/inarbit/internal/decision"
	"github.com/aristath/inarbit/internal/events"
	"github.com/aristath/inarbit/internal/exchange"
	"github.com/aristath/inarbit/internal/kv"
	"github.com/aristath/inarbit/internal/ledger"
	"github.com/aristath/inarbit/internal/marketdata"
	"github.com/aristath/inarbit/internal/oms"
	"github.com/aristath/inarbit/internal/regime"
	"github.com/aristath/inarbit/internal/reliability"
	"github.com/aristath/inarbit/internal/scanners"
)

// Container holds every long-lived collaborator built during Wire, so
// cmd/server/main.go has one struct to start, stop and pass around.
type Container struct {
	// Storage
	OrdersDB *database.DB // single "orders" database; paper_/live_ table families share it
	KV       *kv.Store

	// External connectivity
	Exchanges *exchange.Registry
	SimAdapter *exchange.SimExchange

	// Repositories
	MarketData *marketdata.Repository
	PaperRepo  *oms.Repository
	LiveRepo   *oms.Repository

	// Ledger projectors (one per trading mode, spec.md section 9)
	PaperLedger *ledger.Projector
	LiveLedger  *ledger.Projector

	// Services
	Events    *events.Manager
	Ingestor  *marketdata.Ingestor
	Triangular *scanners.TriangularScanner
	CashCarry  *scanners.CashCarryScanner
	Regime     *regime.Classifier
	Decision   *decision.Service
	OMS        *oms.Service

	// Durability
	Backups   *reliability.BackupService
	S3Backups *reliability.S3BackupService
}

// Close releases every resource the container owns, in reverse
// dependency order. Safe to call on a partially-built Container.
func (c *Container) Close() {
	if c.S3Backups != nil {
		c.S3Backups.Stop()
	}
	if c.Decision != nil {
		c.Decision.Stop()
	}
	if c.Triangular != nil {
		c.Triangular.Stop()
	}
	if c.CashCarry != nil {
		c.CashCarry.Stop()
	}
	if c.Ingestor != nil {
		c.Ingestor.Stop()
	}
	if c.OrdersDB != nil {
		_ = c.OrdersDB.Close()
	}
}
