package quest

import (
	"testing"

	"github.com/kasuganosora/raidsim/server/game/profile"
	"github.com/stretchr/testify/assert"
)

func TestLevelFulfils(t *testing.T) {
	e := NewEvaluator(nopLogger())
	tests := []struct {
		method string
		value  float64
		level  int
		want   bool
	}{
		{">=", 5, 5, true},
		{">=", 5, 4, false},
		{">", 5, 5, false},
		{"<", 5, 4, true},
		{"<=", 5, 5, true},
		{"=", 5, 5, true},
		{"=", 5, 6, false},
		{"~", 5, 5, false},
	}
	for _, tt := range tests {
		cond := Condition{ID: "c", Kind: KindLevel, CompareMethod: tt.method, Value: tt.value}
		assert.Equal(t, tt.want, e.LevelFulfils(tt.level, cond), "%d %s %v", tt.level, tt.method, tt.value)
	}

	assert.True(t, e.LevelFulfils(1, Condition{Kind: KindQuest, CompareMethod: "~"}))
}

func TestPlayerLevelFulfils(t *testing.T) {
	e := NewEvaluator(nopLogger())
	conds := []Condition{
		{Kind: KindLevel, CompareMethod: ">=", Value: 5},
		{Kind: KindLevel, CompareMethod: "<", Value: 10},
		{Kind: KindQuest, Target: Single("x")},
	}
	assert.True(t, e.PlayerLevelFulfils(7, conds))
	assert.False(t, e.PlayerLevelFulfils(10, conds))
	assert.False(t, e.PlayerLevelFulfils(4, conds))
	assert.True(t, e.PlayerLevelFulfils(1, nil))
}

func TestTraderChecks(t *testing.T) {
	e := NewEvaluator(nopLogger())
	p := profile.New("p1", "Hero", profile.SideBear, "standard", []string{"t1"}, 0)
	p.TradersInfo["t1"].LoyaltyLevel = 3

	loyalty := func(method string, v float64) Condition {
		return Condition{ID: "l", Kind: KindTraderLoyalty, CompareMethod: method, Value: v, Target: Single("t1")}
	}
	assert.True(t, e.TraderLoyaltyCheck(p, loyalty(">=", 3)))
	assert.False(t, e.TraderLoyaltyCheck(p, loyalty(">", 3)))
	assert.True(t, e.TraderLoyaltyCheck(p, loyalty("!=", 2)))
	assert.True(t, e.TraderLoyaltyCheck(p, loyalty("==", 3)))
	assert.False(t, e.TraderLoyaltyCheck(p, loyalty("=", 3)))

	standing := Condition{ID: "s", Kind: KindTraderStanding, CompareMethod: "<=", Value: 1, Target: Single("t1")}
	assert.True(t, e.TraderStandingCheck(p, standing))
	v := 1.5
	p.TradersInfo["t1"].Standing = &v
	assert.False(t, e.TraderStandingCheck(p, standing))

	missing := Condition{ID: "m", Kind: KindTraderLoyalty, CompareMethod: ">=", Value: 0, Target: Single("gone")}
	assert.False(t, e.TraderLoyaltyCheck(p, missing))
	assert.False(t, e.TraderStandingCheck(p, missing))
}

func TestQuestPrerequisite(t *testing.T) {
	e := NewEvaluator(nopLogger())
	p := profile.New("p1", "Hero", profile.SideBear, "standard", nil, 0)
	p.SetQuest(profile.QuestStatus{QID: "a", Status: profile.QuestSuccess,
		StatusTimers: map[profile.QuestState]int64{profile.QuestSuccess: 1000}})

	res := e.QuestPrerequisite(p, questCond("a", 600, profile.QuestSuccess), 1200)
	assert.True(t, res.Visible())
	assert.False(t, res.Fulfilled())
	assert.Equal(t, int64(400), res.Remaining)

	res = e.QuestPrerequisite(p, questCond("a", 600, profile.QuestSuccess), 1600)
	assert.True(t, res.Fulfilled())

	res = e.QuestPrerequisite(p, questCond("a", 0, profile.QuestFail), 1600)
	assert.True(t, res.Found)
	assert.False(t, res.Visible())

	res = e.QuestPrerequisite(p, questCond("b", 0, profile.QuestSuccess), 1600)
	assert.False(t, res.Found)
}

func TestEvaluate(t *testing.T) {
	e := NewEvaluator(nopLogger())
	p := profile.New("p1", "Hero", profile.SideBear, "standard", []string{"t1"}, 0)

	assert.True(t, e.Evaluate(p, Condition{Kind: KindLevel, CompareMethod: ">=", Value: 1}, 0))
	assert.False(t, e.Evaluate(p, questCond("a", 0, profile.QuestSuccess), 0))
	assert.True(t, e.Evaluate(p, Condition{Kind: KindHandoverItem}, 0))
	assert.False(t, e.Evaluate(p, Condition{Kind: KindUnknown}, 0))
}
