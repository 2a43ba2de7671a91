package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Static is an in-memory catalog, usually decoded from a TOML seed file.
type Static struct {
	settings  Settings
	swords    map[int]SwordLevel
	materials map[int64]Material
	daily     map[string]DailyMission
	oneTime   map[string]OneTimeMission
}

type file struct {
	Settings        Settings         `toml:"settings"`
	Swords          []swordRecord    `toml:"swords"`
	Materials       []materialRecord `toml:"materials"`
	DailyMissions   []dailyRecord    `toml:"daily_missions"`
	OneTimeMissions []oneTimeRecord  `toml:"one_time_missions"`
}

type swordRecord struct {
	Tier           int          `toml:"tier"`
	Name           string       `toml:"name"`
	BuyingPrice    int64        `toml:"buying_price"`
	Purchasable    bool         `toml:"purchasable"`
	SellingPrice   int64        `toml:"selling_price"`
	UpgradeCost    int64        `toml:"upgrade_cost"`
	SuccessRate    float64      `toml:"success_rate"`
	SynthesizeCost int64        `toml:"synthesize_cost"`
	Recipe         []RecipeItem `toml:"recipe"`
	Drops          []DropEntry  `toml:"drops"`
}

type materialRecord struct {
	ID           int64  `toml:"id"`
	Name         string `toml:"name"`
	BuyingPrice  int64  `toml:"buying_price"`
	SellingPrice int64  `toml:"selling_price"`
	Purchasable  bool   `toml:"purchasable"`
}

type dailyRecord struct {
	ID        string        `toml:"id"`
	Title     string        `toml:"title"`
	Active    bool          `toml:"active"`
	Condition ConditionSpec `toml:"condition"`
	Reward    RewardSpec    `toml:"reward"`
}

type oneTimeRecord struct {
	ID          string          `toml:"id"`
	Title       string          `toml:"title"`
	Active      bool            `toml:"active"`
	TargetValue int64           `toml:"target_value"`
	StartAt     time.Time       `toml:"start_at"`
	ExpiresAt   time.Time       `toml:"expires_at"`
	Conditions  []ConditionSpec `toml:"conditions"`
	Reward      RewardSpec      `toml:"reward"`
}

func LoadFile(path string) (*Static, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Static, error) {
	var f file
	if err := toml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	swords := make([]SwordLevel, 0, len(f.Swords))
	for _, r := range f.Swords {
		swords = append(swords, SwordLevel{
			Tier:           r.Tier,
			Name:           r.Name,
			BuyingPrice:    r.BuyingPrice,
			Purchasable:    r.Purchasable,
			SellingPrice:   r.SellingPrice,
			UpgradeCost:    r.UpgradeCost,
			SuccessRate:    r.SuccessRate,
			SynthesizeCost: r.SynthesizeCost,
			Recipe:         r.Recipe,
			DropTable:      r.Drops,
		})
	}
	materials := make([]Material, 0, len(f.Materials))
	for _, r := range f.Materials {
		materials = append(materials, Material(r))
	}
	daily := make([]DailyMission, 0, len(f.DailyMissions))
	for _, r := range f.DailyMissions {
		cond, err := r.Condition.DailyCondition()
		if err != nil {
			return nil, fmt.Errorf("daily mission %s: %w", r.ID, err)
		}
		reward, err := r.Reward.Reward()
		if err != nil {
			return nil, fmt.Errorf("daily mission %s: %w", r.ID, err)
		}
		daily = append(daily, DailyMission{ID: r.ID, Title: r.Title, Active: r.Active, Condition: cond, Reward: reward})
	}
	oneTime := make([]OneTimeMission, 0, len(f.OneTimeMissions))
	for _, r := range f.OneTimeMissions {
		conds := make([]Condition, 0, len(r.Conditions))
		for _, spec := range r.Conditions {
			c, err := spec.Condition()
			if err != nil {
				return nil, fmt.Errorf("mission %s: %w", r.ID, err)
			}
			conds = append(conds, c)
		}
		reward, err := r.Reward.Reward()
		if err != nil {
			return nil, fmt.Errorf("mission %s: %w", r.ID, err)
		}
		oneTime = append(oneTime, OneTimeMission{
			ID:          r.ID,
			Title:       r.Title,
			Conditions:  conds,
			TargetValue: r.TargetValue,
			Reward:      reward,
			Active:      r.Active,
			StartAt:     r.StartAt.UTC(),
			ExpiresAt:   r.ExpiresAt.UTC(),
		})
	}
	return NewStatic(f.Settings, swords, materials, daily, oneTime)
}

// NewStatic validates the data set and indexes it.
func NewStatic(settings Settings, swords []SwordLevel, materials []Material, daily []DailyMission, oneTime []OneTimeMission) (*Static, error) {
	if err := Validate(settings, swords, materials, daily, oneTime); err != nil {
		return nil, err
	}
	s := &Static{
		settings:  settings,
		swords:    make(map[int]SwordLevel, len(swords)),
		materials: make(map[int64]Material, len(materials)),
		daily:     make(map[string]DailyMission, len(daily)),
		oneTime:   make(map[string]OneTimeMission, len(oneTime)),
	}
	for _, l := range swords {
		s.swords[l.Tier] = l
	}
	for _, m := range materials {
		s.materials[m.ID] = m
	}
	for _, m := range daily {
		s.daily[m.ID] = m
	}
	for _, m := range oneTime {
		s.oneTime[m.ID] = m
	}
	return s, nil
}

func (s *Static) SwordLevel(_ context.Context, tier int) (SwordLevel, error) {
	l, ok := s.swords[tier]
	if !ok {
		return SwordLevel{}, fmt.Errorf("%w: sword tier %d", ErrNotFound, tier)
	}
	return l, nil
}

func (s *Static) SwordLevels(_ context.Context) ([]SwordLevel, error) {
	out := make([]SwordLevel, 0, len(s.swords))
	for _, l := range s.swords {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tier < out[j].Tier })
	return out, nil
}

func (s *Static) Material(_ context.Context, id int64) (Material, error) {
	m, ok := s.materials[id]
	if !ok {
		return Material{}, fmt.Errorf("%w: material %d", ErrNotFound, id)
	}
	return m, nil
}

func (s *Static) Materials(_ context.Context) ([]Material, error) {
	out := make([]Material, 0, len(s.materials))
	for _, m := range s.materials {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Static) Settings(_ context.Context) (Settings, error) {
	return s.settings, nil
}

func (s *Static) DailyMission(_ context.Context, id string) (DailyMission, error) {
	m, ok := s.daily[id]
	if !ok {
		return DailyMission{}, fmt.Errorf("%w: daily mission %s", ErrNotFound, id)
	}
	return m, nil
}

func (s *Static) DailyMissions(_ context.Context) ([]DailyMission, error) {
	out := make([]DailyMission, 0, len(s.daily))
	for _, m := range s.daily {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Static) OneTimeMission(_ context.Context, id string) (OneTimeMission, error) {
	m, ok := s.oneTime[id]
	if !ok {
		return OneTimeMission{}, fmt.Errorf("%w: mission %s", ErrNotFound, id)
	}
	return m, nil
}

func (s *Static) OneTimeMissions(_ context.Context) ([]OneTimeMission, error) {
	out := make([]OneTimeMission, 0, len(s.oneTime))
	for _, m := range s.oneTime {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
