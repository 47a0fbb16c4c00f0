package quest

import (
	"github.com/kasuganosora/raidsim/server/game/profile"
)

// withStatus moves a row to state and stamps the state's timer.
func withStatus(row profile.QuestStatus, state profile.QuestState, now int64) profile.QuestStatus {
	out := row.Clone()
	out.Status = state
	out.StatusTimers[state] = now
	return out
}

func newRow(questID string, state profile.QuestState, now int64) profile.QuestStatus {
	return profile.QuestStatus{
		QID:                 questID,
		Status:              state,
		StartTime:           now,
		StatusTimers:        map[profile.QuestState]int64{state: now},
		CompletedConditions: []string{},
	}
}

// startedRow restarts a quest from scratch.
func startedRow(row profile.QuestStatus, now int64) profile.QuestStatus {
	out := withStatus(row, profile.QuestStarted, now)
	out.StartTime = now
	out.CompletedConditions = []string{}
	out.AvailableAfter = 0
	return out
}

// pendingRow is a quest that can be started once availableAfter passes.
func pendingRow(questID string, now, wait int64) profile.QuestStatus {
	row := newRow(questID, profile.QuestAvailableAfter, now)
	row.StartTime = 0
	row.AvailableAfter = now + wait
	return row
}

// resetRow forces a row back to state, dropping timers of later states.
func resetRow(row profile.QuestStatus, state profile.QuestState, now int64) profile.QuestStatus {
	out := withStatus(row, state, now)
	if state == profile.QuestStarted {
		out.StartTime = now
	}
	for s := range out.StatusTimers {
		if s > state {
			delete(out.StatusTimers, s)
		}
	}
	out.CompletedConditions = []string{}
	return out
}

func snapshotStatuses(p *profile.Profile) map[string]profile.QuestState {
	out := make(map[string]profile.QuestState, len(p.Quests))
	for _, q := range p.Quests {
		out[q.QID] = q.Status
	}
	return out
}

// changedStatuses returns rows that are new or whose status differs from before.
func changedStatuses(before map[string]profile.QuestState, p *profile.Profile) []profile.QuestStatus {
	var out []profile.QuestStatus
	for _, q := range p.Quests {
		if prev, ok := before[q.QID]; !ok || prev != q.Status {
			out = append(out, q.Clone())
		}
	}
	return out
}

// failedRow is a quest failed without ever being started.
func failedRow(questID string, now int64) profile.QuestStatus {
	return newRow(questID, profile.QuestFail, now)
}
