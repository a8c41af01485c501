// Package reconciler audits consistency between the identity provider and
// the profile store. Account creation and deletion span both stores with no
// joint transaction, so a failure between the two mutations leaves an orphan
// on one side. The reconciler finds those orphans out of band.
package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/clinicore/clinicore/internal/identity"
	"github.com/clinicore/clinicore/internal/metrics"
	"github.com/clinicore/clinicore/internal/profile"
)

// Report is the outcome of a single reconciliation pass.
type Report struct {
	// OrphanAccounts are identity-provider UIDs with no profile document.
	// These principals can authenticate but hold no role.
	OrphanAccounts []string
	// OrphanProfiles are profile UIDs with no identity-provider account.
	// These rows assert a role nobody can log in as.
	OrphanProfiles []string
	// Repaired are orphan account UIDs deleted by repair mode.
	Repaired []string
	// Skipped counts records younger than the grace window.
	Skipped int
}

// Reconciler periodically compares the two stores and reports orphans.
type Reconciler struct {
	provider identity.Provider
	store    profile.Store
	metrics  *metrics.Metrics
	interval time.Duration

	// grace excludes records younger than this from the audit, so an
	// in-flight provisioning between its two writes is not flagged.
	grace time.Duration

	// repair deletes orphaned identity-provider accounts, failing toward
	// "no access". Orphaned profiles are only reported; removing them
	// would destroy the record needed to diagnose the half-creation.
	repair bool
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithRepair enables deletion of orphaned identity-provider accounts.
func WithRepair() Option {
	return func(r *Reconciler) { r.repair = true }
}

// WithGrace sets the minimum record age before a record is audited.
func WithGrace(d time.Duration) Option {
	return func(r *Reconciler) { r.grace = d }
}

// WithMetrics attaches orphan gauges updated on every pass.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

// New creates a Reconciler.
func New(provider identity.Provider, store profile.Store, interval time.Duration, opts ...Option) *Reconciler {
	r := &Reconciler{
		provider: provider,
		store:    store,
		interval: interval,
		grace:    10 * time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins the reconciliation loop. It blocks until ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	slog.Info("reconciler started", "interval", r.interval.String(), "repair", r.repair)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				slog.Error("reconciliation pass failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single reconciliation pass and returns the report.
func (r *Reconciler) RunOnce(ctx context.Context) (*Report, error) {
	accounts, err := r.provider.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	profiles, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-r.grace)
	report := &Report{}

	profileUIDs := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		profileUIDs[p.UID] = true
	}
	accountUIDs := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		accountUIDs[a.UID] = true
	}

	for _, a := range accounts {
		if profileUIDs[a.UID] {
			continue
		}
		if a.CreatedAt.After(cutoff) {
			report.Skipped++
			continue
		}
		report.OrphanAccounts = append(report.OrphanAccounts, a.UID)
		slog.Warn("orphaned identity-provider account: no profile document",
			"uid", a.UID,
			"email", a.Email,
		)

		if r.repair {
			if err := r.provider.DeleteAccount(ctx, a.UID); err != nil {
				slog.Error("failed to repair orphaned account", "uid", a.UID, "error", err)
				continue
			}
			report.Repaired = append(report.Repaired, a.UID)
			slog.Info("deleted orphaned identity-provider account", "uid", a.UID)
		}
	}

	for _, p := range profiles {
		if accountUIDs[p.UID] {
			continue
		}
		if p.CreatedAt.After(cutoff) {
			report.Skipped++
			continue
		}
		report.OrphanProfiles = append(report.OrphanProfiles, p.UID)
		slog.Warn("orphaned profile document: no identity-provider account",
			"uid", p.UID,
			"email", p.Email,
			"role", p.Role.String(),
		)
	}

	if r.metrics != nil {
		r.metrics.OrphanAccounts.Set(float64(len(report.OrphanAccounts)))
		r.metrics.OrphanProfiles.Set(float64(len(report.OrphanProfiles)))
	}

	slog.Info("reconciliation pass complete",
		"orphanAccounts", len(report.OrphanAccounts),
		"orphanProfiles", len(report.OrphanProfiles),
		"repaired", len(report.Repaired),
		"skipped", report.Skipped,
	)

	return report, nil
}
