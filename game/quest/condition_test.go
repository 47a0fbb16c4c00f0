package quest

import (
	"encoding/json"
	"testing"

	"github.com/kasuganosora/raidsim/server/game/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCondition_DecodeDefinition(t *testing.T) {
	raw := `{
		"id": "c1",
		"conditionType": "Quest",
		"target": "5936d90786f7742b1420ba5b",
		"status": [4, 5],
		"availableAfter": 3600
	}`
	var c Condition
	require.NoError(t, json.Unmarshal([]byte(raw), &c))

	assert.Equal(t, KindQuest, c.Kind)
	assert.False(t, c.Target.IsList)
	assert.Equal(t, "5936d90786f7742b1420ba5b", c.Target.First())
	assert.True(t, c.HasStatus(profile.QuestFail))
	assert.False(t, c.HasStatus(profile.QuestStarted))
	assert.Equal(t, int64(3600), c.AvailableAfter)
}

func TestCondition_ListTargetAndUnknownKind(t *testing.T) {
	var c Condition
	require.NoError(t, json.Unmarshal([]byte(`{"conditionType":"Skill","target":["a","b"]}`), &c))

	assert.Equal(t, KindUnknown, c.Kind)
	assert.True(t, c.Target.IsList)
	assert.True(t, c.Target.Contains("b"))

	out, err := json.Marshal(c.Target)
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(out))
}

func TestQuest_WithLevelConditionsOnly(t *testing.T) {
	q := testQuests()["q5"]
	stripped := q.WithLevelConditionsOnly()

	require.Len(t, stripped.Conditions.AvailableForStart, 1)
	assert.Equal(t, KindLevel, stripped.Conditions.AvailableForStart[0].Kind)
	assert.Len(t, q.Conditions.AvailableForStart, 3)
}
