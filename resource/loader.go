// Package resource loads the static game database: quest definitions,
// traders, item templates, prices, locations, globals and locale tables.
// Everything it holds is read-only after Load.
package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kasuganosora/raidsim/server/game/item"
	"github.com/kasuganosora/raidsim/server/game/quest"
)

// ---- Data Structures ----

// Globals holds game-wide tables.
type Globals struct {
	// ExperienceTable[i] is the total experience needed to reach level i+1.
	ExperienceTable []int64 `json:"experienceTable"`
}

// TraderInsurance is a trader's insurance offer.
type TraderInsurance struct {
	Availability   bool    `json:"availability"`
	MinReturnHours int     `json:"minReturnHours"`
	MaxReturnHours int     `json:"maxReturnHours"`
	MaxStorageTime int     `json:"maxStorageTime"` // hours
	PriceCoef      float64 `json:"priceCoef"`
}

type Trader struct {
	ID        string              `json:"_id"`
	Nickname  string              `json:"nickname"`
	Insurance TraderInsurance     `json:"insurance"`
	Dialogue  map[string][]string `json:"dialogue"`
}

type Location struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Insurance bool   `json:"insurance"`
}

// ---- ResourceLoader ----

// ResourceLoader reads and holds the static game database.
type ResourceLoader struct {
	DataPath  string
	Globals   *Globals
	Quests    map[string]*quest.Quest
	Traders   map[string]*Trader
	Items     map[string]*item.Template
	Prices    map[string]float64
	Locations map[string]*Location
	// Locales maps a language tag to its key → text table.
	Locales map[string]map[string]string

	definitions *quest.Definitions
	traderIDs   []string
}

// NewLoader creates a ResourceLoader for the given data directory.
func NewLoader(dataPath string) *ResourceLoader {
	return &ResourceLoader{
		DataPath:  dataPath,
		Globals:   &Globals{},
		Quests:    make(map[string]*quest.Quest),
		Traders:   make(map[string]*Trader),
		Items:     make(map[string]*item.Template),
		Prices:    make(map[string]float64),
		Locations: make(map[string]*Location),
		Locales:   make(map[string]map[string]string),
	}
}

// Load reads all data files and builds the derived indexes.
func (rl *ResourceLoader) Load() error {
	loaders := []func() error{
		rl.loadGlobals,
		rl.loadQuests,
		rl.loadTraders,
		rl.loadItems,
		rl.loadPrices,
		rl.loadLocations,
		rl.loadLocales,
	}
	for _, fn := range loaders {
		if err := fn(); err != nil {
			return err
		}
	}
	rl.definitions = quest.NewDefinitions(rl.Quests)
	rl.traderIDs = rl.traderIDs[:0]
	for id := range rl.Traders {
		rl.traderIDs = append(rl.traderIDs, id)
	}
	sort.Strings(rl.traderIDs)
	return nil
}

func (rl *ResourceLoader) path(file string) string {
	return filepath.Join(rl.DataPath, file)
}

func loadJSONObject[T any](path string, out *T) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("resource: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("resource: parse %s: %w", path, err)
	}
	return nil
}

// loadOptional is loadJSONObject for files that may be absent.
func loadOptional[T any](path string, out *T) error {
	err := loadJSONObject(path, out)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (rl *ResourceLoader) loadGlobals() error {
	return loadJSONObject(rl.path("globals.json"), rl.Globals)
}

func (rl *ResourceLoader) loadQuests() error {
	if err := loadJSONObject(rl.path("quests.json"), &rl.Quests); err != nil {
		return err
	}
	for id, q := range rl.Quests {
		if q == nil {
			return fmt.Errorf("resource: quest %s: empty definition", id)
		}
		if q.ID != "" && q.ID != id {
			return fmt.Errorf("resource: quest %s: id mismatch %q", id, q.ID)
		}
		q.ID = id
	}
	return nil
}

func (rl *ResourceLoader) loadTraders() error {
	if err := loadJSONObject(rl.path("traders.json"), &rl.Traders); err != nil {
		return err
	}
	for id, tr := range rl.Traders {
		if tr == nil {
			return fmt.Errorf("resource: trader %s: empty definition", id)
		}
		tr.ID = id
	}
	return nil
}

func (rl *ResourceLoader) loadItems() error {
	if err := loadJSONObject(rl.path("items.json"), &rl.Items); err != nil {
		return err
	}
	for tpl, t := range rl.Items {
		if t == nil {
			return fmt.Errorf("resource: item %s: empty template", tpl)
		}
		t.ID = tpl
	}
	return nil
}

func (rl *ResourceLoader) loadPrices() error {
	return loadOptional(rl.path("prices.json"), &rl.Prices)
}

func (rl *ResourceLoader) loadLocations() error {
	if err := loadOptional(rl.path("locations.json"), &rl.Locations); err != nil {
		return err
	}
	for id, l := range rl.Locations {
		if l == nil {
			return fmt.Errorf("resource: location %s: empty definition", id)
		}
		l.ID = id
	}
	return nil
}

// loadLocales reads locales/<lang>.json. The directory is optional.
func (rl *ResourceLoader) loadLocales() error {
	dir := rl.path("locales")
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("resource: read %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		table := make(map[string]string)
		if err := loadJSONObject(filepath.Join(dir, e.Name()), &table); err != nil {
			return err
		}
		rl.Locales[strings.TrimSuffix(e.Name(), ".json")] = table
	}
	return nil
}

// ---- Lookups ----

// Definitions returns the indexed quest database.
func (rl *ResourceLoader) Definitions() *quest.Definitions { return rl.definitions }

// ExperienceTable returns the level thresholds.
func (rl *ResourceLoader) ExperienceTable() []int64 { return rl.Globals.ExperienceTable }

// GetItem returns the template for tpl.
func (rl *ResourceLoader) GetItem(tpl string) (*item.Template, bool) {
	t, ok := rl.Items[tpl]
	return t, ok
}

// GetItemPrice returns the rouble price of tpl.
func (rl *ResourceLoader) GetItemPrice(tpl string) (float64, bool) {
	p, ok := rl.Prices[tpl]
	return p, ok
}

// TraderIDs returns every trader id in sorted order.
func (rl *ResourceLoader) TraderIDs() []string { return rl.traderIDs }

// TraderExists reports whether traderID is defined.
func (rl *ResourceLoader) TraderExists(traderID string) bool {
	_, ok := rl.Traders[traderID]
	return ok
}

// TraderDialogue returns the trader's message templates for key.
func (rl *ResourceLoader) TraderDialogue(traderID, key string) []string {
	tr, ok := rl.Traders[traderID]
	if !ok {
		return nil
	}
	return tr.Dialogue[key]
}

// TraderInsurance returns the trader's insurance offer.
func (rl *ResourceLoader) TraderInsurance(traderID string) (TraderInsurance, bool) {
	tr, ok := rl.Traders[traderID]
	if !ok {
		return TraderInsurance{}, false
	}
	return tr.Insurance, true
}

// LocationInsuranceEnabled reports whether insured items lost on location
// are returned. Unknown locations allow insurance.
func (rl *ResourceLoader) LocationInsuranceEnabled(location string) bool {
	for id, l := range rl.Locations {
		if strings.EqualFold(id, location) {
			return l.Insurance
		}
	}
	return true
}
