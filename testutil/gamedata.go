package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteJSON writes v as JSON to dir/filename, creating parent directories.
func WriteJSON(t *testing.T, dir, filename string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(dir, filename)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

// WriteGameData creates a small game database in a temp dir and returns its
// path:
//
//	q1:    no conditions, mails a money reward on success
//	q2:    needs q1 success
//	sell1: finished by selling tpl-gun to a trader
//
// prapor insures at 0.25 of the handbook price, fence does not insure and
// the laboratory location has insurance disabled.
func WriteGameData(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	WriteJSON(t, dir, "globals.json", map[string]any{"experienceTable": []int64{0, 1000, 3000}})
	WriteJSON(t, dir, "quests.json", map[string]any{
		"q1": map[string]any{
			"QuestName": "Debut", "traderId": "prapor", "successMessageText": "q1-success",
			"conditions": map[string]any{},
			"rewards": map[string]any{
				"Success": []any{
					map[string]any{"id": "xp", "type": "Experience", "value": 500},
					map[string]any{"id": "money", "type": "Item", "items": []any{
						map[string]any{"_id": "r1", "_tpl": "tpl-roubles", "upd": map[string]any{"StackObjectsCount": 5000}},
					}},
				},
			},
		},
		"q2": map[string]any{
			"QuestName": "Shortage", "traderId": "prapor",
			"conditions": map[string]any{
				"AvailableForStart": []any{
					map[string]any{"id": "c-q1", "conditionType": "Quest", "target": "q1", "status": []int{4}},
				},
			},
		},
		"sell1": map[string]any{
			"QuestName": "Supplier", "traderId": "prapor",
			"conditions": map[string]any{
				"AvailableForFinish": []any{
					map[string]any{"id": "s", "conditionType": "SellItemToTrader", "target": []string{"tpl-gun"}, "value": 2},
					map[string]any{"id": "find-gun", "conditionType": "FindItem", "target": []string{"tpl-gun"}, "value": 1},
				},
			},
		},
	})
	WriteJSON(t, dir, "traders.json", map[string]any{
		"prapor": map[string]any{
			"nickname": "Prapor",
			"insurance": map[string]any{
				"availability": true, "minReturnHours": 1, "maxReturnHours": 2,
				"maxStorageTime": 96, "priceCoef": 0.25,
			},
			"dialogue": map[string][]string{"insuranceFound": {"ins-found"}, "insuranceFailed": {"ins-failed"}},
		},
		"fence": map[string]any{"nickname": "Fence"},
	})
	WriteJSON(t, dir, "items.json", map[string]any{
		"tpl-gun":     map[string]any{"name": "Gun", "parent": "weapon"},
		"tpl-roubles": map[string]any{"name": "Roubles", "parent": "money"},
	})
	WriteJSON(t, dir, "prices.json", map[string]float64{"tpl-gun": 40000})
	WriteJSON(t, dir, "locations.json", map[string]any{"laboratory": map[string]any{"insurance": false}})
	WriteJSON(t, dir, "locales/en.json", map[string]string{"q1-success": "Good work", "ins-found": "Found your gear"})
	WriteJSON(t, dir, "locales/de.json", map[string]string{"q1-success": "Gute Arbeit"})
	return dir
}
