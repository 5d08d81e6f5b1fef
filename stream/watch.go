package stream

import (
	"fmt"
	"log"
	"sync"

	"github.com/shopspring/decimal"
)

// watch is a single armed price condition. It is single-shot: once fired
// it is removed from the registry and never re-evaluated. barrierCrossed gates arming when a barrier is set: the
// price must be observed strictly on the barrier's side at least once
// before the direction check is allowed to fire.
type watch struct {
	target      decimal.Decimal
	direction   Direction
	barrierSet  bool
	barrierPx   decimal.Decimal
	barrierSide BarrierSide

	barrierCrossed bool
	triggered      bool

	onReach OnReach
}

func watchKey(target decimal.Decimal, direction Direction, barrierSet bool, barrierPx decimal.Decimal, barrierSide BarrierSide) string {
	if !barrierSet {
		return fmt.Sprintf("%s_%s_none_none", target.String(), direction)
	}
	return fmt.Sprintf("%s_%s_%s_%s", target.String(), direction, barrierPx.String(), barrierSide)
}

// watchRegistry holds the live set of armed watches, keyed the same way
// the wire protocol does: (target, direction, barrierPrice,
// barrierSide). Re-registering an identical key is a no-op replace, not
// a duplicate.
type watchRegistry struct {
	mu    sync.Mutex
	byKey map[string]*watch
}

func newWatchRegistry() *watchRegistry {
	return &watchRegistry{byKey: make(map[string]*watch)}
}

func (r *watchRegistry) add(key string, w *watch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[key] = w
}

func (r *watchRegistry) remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byKey, key)
}

func (r *watchRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey = make(map[string]*watch)
}

// evaluate checks every armed watch against the current price and fires
// (exactly once) any whose condition is now satisfied. Called from
// Stream.EvaluateWatches, which the single price-event consumer goroutine
// (strategy.Core.RunPriceConsumer) drives — never from the reader
// goroutine in stream.go's Run, so a blocking OnReach never risks the
// read deadline.
func (r *watchRegistry) evaluate(current decimal.Decimal) {
	r.mu.Lock()
	var fired []*watch
	var firedKeys []string
	for key, w := range r.byKey {
		if w.triggered {
			continue
		}

		if w.barrierSet && !w.barrierCrossed {
			switch w.barrierSide {
			case Above:
				if current.GreaterThan(w.barrierPx) {
					w.barrierCrossed = true
				}
			case Below:
				if current.LessThan(w.barrierPx) {
					w.barrierCrossed = true
				}
			}
			if !w.barrierCrossed {
				continue
			}
		}

		reached := false
		switch w.direction {
		case Long:
			reached = current.GreaterThanOrEqual(w.target)
		case Short:
			reached = current.LessThanOrEqual(w.target)
		}

		if reached {
			w.triggered = true
			fired = append(fired, w)
			firedKeys = append(firedKeys, key)
		}
	}
	for _, key := range firedKeys {
		delete(r.byKey, key)
	}
	r.mu.Unlock()

	for _, w := range fired {
		log.Printf("🎯 STREAM: watch %s %s reached at %s", w.direction, w.target.String(), current.String())
		w.onReach(w.target)
	}
}
