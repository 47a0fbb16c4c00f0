package insurance

import (
	"testing"

	"github.com/kasuganosora/raidsim/server/config"
	"github.com/kasuganosora/raidsim/server/game/item"
	"github.com/kasuganosora/raidsim/server/game/rng"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollForDelete(t *testing.T) {
	tests := []struct {
		name   string
		trader string
		chance float64
		draw   int
		lost   bool
	}{
		{"zero chance loses the lowest draw", "prapor", 0, 0, true},
		{"zero chance loses the highest draw", "prapor", 0, 9999, true},
		{"full chance keeps the highest draw", "prapor", 100, 9999, false},
		{"draw at the threshold is lost", "prapor", 70, 7000, true},
		{"truncation keeps 69.99", "prapor", 70, 6999, false},
		{"fractional chance", "prapor", 69.5, 6950, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.InsuranceConfig{ReturnChancePercent: map[string]float64{tt.trader: tt.chance}}
			h := newHarness(t, cfg, []int{tt.draw}, nil)
			assert.Equal(t, tt.lost, h.svc.rollForDelete(tt.trader, "tpl"))
		})
	}
}

func TestRollForDelete_NoRoll(t *testing.T) {
	h := newHarness(t, config.InsuranceConfig{}, []int{7}, nil)
	assert.False(t, h.svc.rollForDelete("unknown", "tpl"), "unknown trader")
	assert.False(t, h.svc.rollForDelete("fence", "tpl"), "no configured chance")

	seq := h.svc.rng.(*rng.Sequence)
	assert.Equal(t, 7, seq.IntN(10), "no value consumed")
}

func TestRollForDelete_LowerCasedConfigKey(t *testing.T) {
	cfg := config.InsuranceConfig{ReturnChancePercent: map[string]float64{"prapor": 0}}
	h := newHarness(t, cfg, nil, nil)
	h.data.insurance["Prapor"] = h.data.insurance["prapor"]
	assert.True(t, h.svc.rollForDelete("Prapor", "tpl"))
}

// rifleTree is a rifle with a sight, a welded muzzle and a required receiver
// that carries its own sight.
func rifleTree() []item.Item {
	return []item.Item{
		{ID: "rifle", Template: "tpl-rifle", ParentID: "root", SlotID: "hideout"},
		{ID: "sight", Template: "tpl-sight", ParentID: "rifle", SlotID: "mod_scope"},
		{ID: "welded", Template: "tpl-welded", ParentID: "rifle", SlotID: "mod_muzzle"},
		{ID: "receiver", Template: "tpl-receiver", ParentID: "rifle", SlotID: "mod_reciever"},
		{ID: "rec-sight", Template: "tpl-sight", ParentID: "receiver", SlotID: "mod_scope"},
		{ID: "junk", Template: "tpl-junk", ParentID: "root", SlotID: "hideout"},
	}
}

func TestParentAttachments(t *testing.T) {
	h := newHarness(t, config.InsuranceConfig{}, nil, nil)
	items := append(rifleTree(),
		item.Item{ID: "stray", Template: "tpl-sight", ParentID: "missing", SlotID: "mod_scope"},
		item.Item{ID: "mystery", Template: "tpl-unknown", ParentID: "rifle", SlotID: "mod_tactical"},
	)
	got := h.svc.parentAttachments("root", items, item.Map(items))

	require.Len(t, got, 1)
	ids := make([]string, 0, len(got["rifle"]))
	for _, a := range got["rifle"] {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"sight", "welded", "receiver", "rec-sight"}, ids)
}

func TestRemoveNonModdable(t *testing.T) {
	h := newHarness(t, config.InsuranceConfig{}, nil, nil)
	items := rifleTree()
	byID := item.Map(items)
	got := h.svc.removeNonModdable(h.svc.parentAttachments("root", items, byID), byID)

	ids := make([]string, 0)
	for _, a := range got["rifle"] {
		ids = append(ids, a.ID)
	}
	// welded is flagged, receiver fills a required slot; rec-sight is judged
	// against the receiver, which has no required slots
	assert.Equal(t, []string{"sight", "rec-sight"}, ids)
}

func TestFindItemsToDelete_LostParentTakesAttachments(t *testing.T) {
	cfg := config.InsuranceConfig{ReturnChancePercent: map[string]float64{"prapor": 50}}
	// rifle roll 99 loses it, junk roll 0 keeps it
	h := newHarness(t, cfg, []int{9999, 0}, nil)

	got := h.svc.findItemsToDelete("root", "prapor", rifleTree())
	assert.Equal(t, map[string]struct{}{
		"rifle": {}, "sight": {}, "welded": {}, "receiver": {}, "rec-sight": {},
	}, got)
}

func TestFindItemsToDelete_NoAttachmentsTaken(t *testing.T) {
	cfg := config.InsuranceConfig{
		ReturnChancePercent:             map[string]float64{"prapor": 50},
		ChanceNoAttachmentsTakenPercent: 100,
	}
	// both regular items survive, then the no-attachments roll hits
	h := newHarness(t, cfg, []int{0, 0, 0}, nil)

	assert.Empty(t, h.svc.findItemsToDelete("root", "prapor", rifleTree()))
}

func TestFindItemsToDelete_CheapAttachmentsStay(t *testing.T) {
	cfg := config.InsuranceConfig{
		ReturnChancePercent:               map[string]float64{"prapor": 50},
		MinAttachmentRoublePriceToBeTaken: 50000,
	}
	// keep rifle and junk, miss no-attachments, no attachment reaches the minimum
	h := newHarness(t, cfg, []int{0, 0, 99}, nil)

	assert.Empty(t, h.svc.findItemsToDelete("root", "prapor", rifleTree()))
}

func TestFindItemsToDelete_DrawsWithoutReplacement(t *testing.T) {
	cfg := config.InsuranceConfig{
		ReturnChancePercent:               map[string]float64{"prapor": 50},
		MinAttachmentRoublePriceToBeTaken: 1,
	}
	// keep rifle and junk, miss no-attachments, both sights roll lost
	h := newHarness(t, cfg, []int{0, 0, 99, 9999, 9999}, []float64{0.9, 0.9})

	got := h.svc.findItemsToDelete("root", "prapor", rifleTree())
	assert.Equal(t, map[string]struct{}{"sight": {}, "rec-sight": {}}, got)
}

func TestDrawAttachments_UnpricedAreNeverDrawn(t *testing.T) {
	cfg := config.InsuranceConfig{ReturnChancePercent: map[string]float64{"prapor": 0}}
	h := newHarness(t, cfg, []int{99}, nil)
	list := []item.Item{
		{ID: "a", Template: "tpl-sight"},
		{ID: "b", Template: "tpl-receiver"},
	}
	assert.Equal(t, []string{"a"}, h.svc.drawAttachments("prapor", list))
}
