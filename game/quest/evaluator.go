package quest

import (
	"github.com/kasuganosora/raidsim/server/game/profile"
	"go.uber.org/zap"
)

// PrereqResult describes a Quest-kind condition checked against a profile.
type PrereqResult struct {
	// Found is true when the referenced quest has a status row.
	Found bool
	// StatusMatch is true when that row's status is one the condition accepts.
	StatusMatch bool
	// Remaining is the number of seconds still to wait before the
	// condition's AvailableAfter delay has elapsed. Zero or negative means
	// no wait.
	Remaining int64
}

// Visible reports whether the prerequisite allows the quest to be shown.
// Pending waits do not hide a quest.
func (r PrereqResult) Visible() bool { return r.Found && r.StatusMatch }

// Fulfilled reports whether the prerequisite is fully met.
func (r PrereqResult) Fulfilled() bool { return r.Visible() && r.Remaining <= 0 }

// Evaluator checks quest conditions against a profile. Predicates never fail:
// malformed data is logged and treated as unmet.
type Evaluator struct {
	logger *zap.Logger
}

func NewEvaluator(logger *zap.Logger) *Evaluator {
	return &Evaluator{logger: logger}
}

// Evaluate reports whether cond holds for p at time now (unix seconds).
func (e *Evaluator) Evaluate(p *profile.Profile, cond Condition, now int64) bool {
	switch cond.Kind {
	case KindLevel:
		return e.LevelFulfils(p.Info.Level, cond)
	case KindQuest:
		return e.QuestPrerequisite(p, cond, now).Fulfilled()
	case KindTraderLoyalty:
		return e.TraderLoyaltyCheck(p, cond)
	case KindTraderStanding:
		return e.TraderStandingCheck(p, cond)
	case KindFindItem, KindHandoverItem, KindSellItemToTrader, KindCounterCreator:
		// progress conditions are tracked by counters, not gated here
		return true
	default:
		e.logger.Warn("unhandled condition kind",
			zap.String("condition_id", cond.ID), zap.Stringer("kind", cond.Kind))
		return false
	}
}

// LevelFulfils reports whether level satisfies a Level condition. Conditions
// of any other kind are satisfied.
func (e *Evaluator) LevelFulfils(level int, cond Condition) bool {
	if cond.Kind != KindLevel {
		return true
	}
	l, v := float64(level), cond.Value
	switch cond.CompareMethod {
	case ">=":
		return l >= v
	case ">":
		return l > v
	case "<":
		return l < v
	case "<=":
		return l <= v
	case "=":
		return l == v
	default:
		e.logger.Error("unknown level compare method",
			zap.String("condition_id", cond.ID), zap.String("compare_method", cond.CompareMethod))
		return false
	}
}

// PlayerLevelFulfils reports whether every Level condition in conds holds.
func (e *Evaluator) PlayerLevelFulfils(level int, conds []Condition) bool {
	for _, c := range filterKind(conds, KindLevel) {
		if !e.LevelFulfils(level, c) {
			return false
		}
	}
	return true
}

// TraderLoyaltyCheck compares the trader's loyalty level with cond.Value.
func (e *Evaluator) TraderLoyaltyCheck(p *profile.Profile, cond Condition) bool {
	tr, ok := e.conditionTrader(p, cond)
	if !ok {
		return false
	}
	return e.compareTrader(float64(tr.LoyaltyLevel), cond)
}

// TraderStandingCheck compares the trader's standing with cond.Value. A
// trader without a recorded standing counts as 1.
func (e *Evaluator) TraderStandingCheck(p *profile.Profile, cond Condition) bool {
	tr, ok := e.conditionTrader(p, cond)
	if !ok {
		return false
	}
	standing := 1.0
	if tr.Standing != nil {
		standing = *tr.Standing
	}
	return e.compareTrader(standing, cond)
}

func (e *Evaluator) conditionTrader(p *profile.Profile, cond Condition) (*profile.TraderInfo, bool) {
	id := cond.Target.First()
	tr, ok := p.Trader(id)
	if !ok {
		e.logger.Error("condition references trader missing from profile",
			zap.String("condition_id", cond.ID), zap.String("trader_id", id), zap.String("profile_id", p.ID))
		return nil, false
	}
	return tr, true
}

func (e *Evaluator) compareTrader(current float64, cond Condition) bool {
	v := cond.Value
	switch cond.CompareMethod {
	case ">=":
		return current >= v
	case ">":
		return current > v
	case "<=":
		return current <= v
	case "<":
		return current < v
	case "!=":
		return current != v
	case "==":
		return current == v
	default:
		e.logger.Error("unknown trader compare method",
			zap.String("condition_id", cond.ID), zap.String("compare_method", cond.CompareMethod))
		return false
	}
}

// QuestPrerequisite checks a Quest-kind condition: the first profile row
// matching a target id must be in one of cond.Status, and when
// cond.AvailableAfter is set that many seconds must have passed since it
// entered that state.
func (e *Evaluator) QuestPrerequisite(p *profile.Profile, cond Condition, now int64) PrereqResult {
	var row *profile.QuestStatus
	for i := range p.Quests {
		if cond.Target.Contains(p.Quests[i].QID) {
			row = &p.Quests[i]
			break
		}
	}
	if row == nil {
		return PrereqResult{}
	}
	res := PrereqResult{Found: true, StatusMatch: cond.HasStatus(row.Status)}
	if res.StatusMatch && cond.AvailableAfter > 0 {
		if entered, ok := row.StatusTimers[row.Status]; ok {
			res.Remaining = entered + cond.AvailableAfter - now
		}
	}
	return res
}
