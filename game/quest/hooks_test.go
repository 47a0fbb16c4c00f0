package quest

import (
	"context"
	"testing"

	"github.com/kasuganosora/raidsim/server/config"
	"github.com/kasuganosora/raidsim/server/game/profile"
	"github.com/kasuganosora/raidsim/server/plugin/hook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordEvents(hc *hook.Center, events ...string) *[]hook.QuestEvent {
	var seen []hook.QuestEvent
	for _, ev := range events {
		hc.Register(ev, 0, "test", func(_ context.Context, _ string, d any) (any, error) {
			seen = append(seen, d.(hook.QuestEvent))
			return d, nil
		})
	}
	return &seen
}

func TestHooks_TriggeredAfterTransitions(t *testing.T) {
	h := newHarness(t, testQuests(), config.QuestConfig{})
	h.create(t, func(p *profile.Profile) { p.SetQuest(startedAt("q4", 10)) })
	hc := hook.NewCenter(nopLogger())
	seen := recordEvents(hc, hook.QuestAccepted, hook.QuestCompleted, hook.QuestFailed)
	h.svc.SetHooks(hc)
	ctx := context.Background()

	_, err := h.svc.FailQuest(ctx, "p1", "q4")
	require.NoError(t, err)
	_, err = h.svc.AcceptQuest(ctx, "p1", "q1", "")
	require.NoError(t, err)
	_, err = h.svc.CompleteQuest(ctx, "p1", "q1")
	require.NoError(t, err)

	require.Len(t, *seen, 3)
	assert.Equal(t, hook.QuestEvent{ProfileID: "p1", QuestID: "q4", Status: "Fail", NewQuests: 1}, (*seen)[0])
	assert.Equal(t, hook.QuestEvent{ProfileID: "p1", QuestID: "q1", Status: "Started", NewQuests: 1}, (*seen)[1])
	assert.Equal(t, "q1", (*seen)[2].QuestID)
	assert.Equal(t, "Success", (*seen)[2].Status)
}

func TestHooks_NotTriggeredOnError(t *testing.T) {
	h := newHarness(t, testQuests(), config.QuestConfig{})
	h.create(t, nil)
	hc := hook.NewCenter(nopLogger())
	seen := recordEvents(hc, hook.QuestCompleted, hook.QuestFailed)
	h.svc.SetHooks(hc)

	_, err := h.svc.CompleteQuest(context.Background(), "p1", "q1")
	require.Error(t, err)
	_, err = h.svc.FailQuest(context.Background(), "p1", "missing")
	require.Error(t, err)
	assert.Empty(t, *seen)
}
