/*
reconciler.go - Background period total reconciliation

PURPOSE:

	Every mutation keeps its period total current inside its transaction.
	The reconciler is the safety net for rows written by other tools
	(imports, manual SQL): it periodically walks every client's periods and
	rewrites any total that no longer equals the sum of its productions.

DESIGN:
  - One background goroutine, ticking at Interval
  - Runs a sweep immediately on start
  - A failed period is logged and skipped; the sweep carries on

USAGE:

	rec := ledger.NewReconciler(svc, time.Hour)
	rec.Start(ctx)
	// ... later
	rec.Stop()
*/
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/palmapsd/production-ledger/billing"
)

// SweepResult counts what one reconciliation sweep did.
type SweepResult struct {
	Checked  int
	Repaired []billing.PeriodID
	Failed   int
}

// Reconciler periodically repairs drifted period totals.
type Reconciler struct {
	svc      *Service
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReconciler creates a reconciler; it does nothing until Start.
func NewReconciler(svc *Service, interval time.Duration) *Reconciler {
	return &Reconciler{svc: svc, interval: interval}
}

// Start launches the background loop. A non-positive interval or a second
// Start is a no-op.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.interval <= 0 {
		r.svc.log.Info().Msg("reconciler disabled")
		return
	}
	if r.cancel != nil {
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.run(ctx)

	r.svc.log.Info().Dur("interval", r.interval).Msg("reconciler started")
}

// Stop ends the loop and waits for a running sweep to finish.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel = nil
	r.svc.log.Info().Msg("reconciler stopped")
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Sweep(ctx)
	for {
		select {
		case <-ticker.C:
			r.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep checks every period of every client once.
func (r *Reconciler) Sweep(ctx context.Context) SweepResult {
	var res SweepResult
	log := r.svc.log

	clients, err := r.svc.ListClients(ctx)
	if err != nil {
		log.Error().Err(err).Msg("reconciler: listing clients failed")
		res.Failed++
		return res
	}

	for _, c := range clients {
		periods, err := r.svc.PeriodsByClient(ctx, c.ID)
		if err != nil {
			log.Error().Err(err).Str("client_id", string(c.ID)).Msg("reconciler: listing periods failed")
			res.Failed++
			continue
		}
		for _, p := range periods {
			if ctx.Err() != nil {
				return res
			}
			res.Checked++
			total, err := r.svc.RecalculateTotal(ctx, p.ID)
			if err != nil {
				log.Error().Err(err).Str("period_id", string(p.ID)).Msg("reconciler: recalculation failed")
				res.Failed++
				continue
			}
			if !total.Equal(p.Total) {
				res.Repaired = append(res.Repaired, p.ID)
				log.Warn().
					Str("period_id", string(p.ID)).
					Str("stored", p.Total.StringFixed(2)).
					Str("computed", total.StringFixed(2)).
					Msg("period total repaired")
			}
		}
	}

	if len(res.Repaired) > 0 || res.Failed > 0 {
		log.Info().
			Int("checked", res.Checked).
			Int("repaired", len(res.Repaired)).
			Int("failed", res.Failed).
			Msg("reconciliation sweep finished")
	}
	return res
}
