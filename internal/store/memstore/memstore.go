// Package memstore is an in-process game.Store. Transactions run one at a time
// against a copy of the state that replaces the committed state only when the
// transaction function succeeds.
package memstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"swordsmith/internal/game"
)

// errMountConflict mirrors the one-mounted-sword unique index of the postgres store.
var errMountConflict = errors.New("memstore: another sword is already mounted")

type swordKey struct {
	accountID string
	tier      int
}

type materialKey struct {
	accountID  string
	materialID int64
}

type progressKey struct {
	accountID string
	missionID string
}

type state struct {
	accounts   map[string]game.Account
	swords     map[swordKey]game.SwordStock
	materials  map[materialKey]game.MaterialStock
	vouchers   map[string]game.Voucher
	gifts      map[string]game.Gift
	adSessions map[string]game.AdSession
	daily      map[progressKey]game.DailyMissionProgress
	oneTime    map[progressKey]game.OneTimeMissionProgress
	upgrades   []game.UpgradeHistory
	syntheses  []game.SynthesisHistory
	purchases  []game.PurchaseRecord
}

func newState() *state {
	return &state{
		accounts:   map[string]game.Account{},
		swords:     map[swordKey]game.SwordStock{},
		materials:  map[materialKey]game.MaterialStock{},
		vouchers:   map[string]game.Voucher{},
		gifts:      map[string]game.Gift{},
		adSessions: map[string]game.AdSession{},
		daily:      map[progressKey]game.DailyMissionProgress{},
		oneTime:    map[progressKey]game.OneTimeMissionProgress{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		accounts:   cloneMap(s.accounts),
		swords:     cloneMap(s.swords),
		materials:  cloneMap(s.materials),
		vouchers:   cloneMap(s.vouchers),
		gifts:      cloneMap(s.gifts),
		adSessions: cloneMap(s.adSessions),
		daily:      cloneMap(s.daily),
		oneTime:    cloneMap(s.oneTime),
		upgrades:   append([]game.UpgradeHistory(nil), s.upgrades...),
		syntheses:  append([]game.SynthesisHistory(nil), s.syntheses...),
		purchases:  append([]game.PurchaseRecord(nil), s.purchases...),
	}
}

type Store struct {
	mu    sync.Mutex
	state *state
}

func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx game.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// ReadTx runs fn against a private copy of the state and discards it.
func (s *Store) ReadTx(ctx context.Context, fn func(ctx context.Context, tx game.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	work := s.state.clone()
	s.mu.Unlock()
	return fn(ctx, &tx{st: work})
}

func (s *Store) ResetStaleDailyCounters(ctx context.Context, day time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, a := range s.state.accounts {
		if !a.CountersDay.Before(day) {
			continue
		}
		a.DailyGoldAds, a.DailyShieldAds, a.DailyOldSwordAds = 0, 0, 0
		a.CountersDay = day
		s.state.accounts[id] = a
		n++
	}
	return n, nil
}

type tx struct {
	st *state
}

func (t *tx) CreateAccount(_ context.Context, a game.Account) error {
	if _, ok := t.st.accounts[a.ID]; ok {
		return game.ErrAccountExists
	}
	if a.Email != "" {
		for _, other := range t.st.accounts {
			if strings.EqualFold(other.Email, a.Email) {
				return game.ErrAccountExists
			}
		}
	}
	t.st.accounts[a.ID] = a
	return nil
}

func (t *tx) Account(_ context.Context, id string) (game.Account, error) {
	a, ok := t.st.accounts[id]
	if !ok {
		return game.Account{}, game.ErrAccountNotFound
	}
	return a, nil
}

func (t *tx) AccountByEmail(_ context.Context, email string) (game.Account, error) {
	for _, a := range t.st.accounts {
		if strings.EqualFold(a.Email, email) {
			return a, nil
		}
	}
	return game.Account{}, game.ErrAccountNotFound
}

func (t *tx) UpdateAccount(_ context.Context, a game.Account) error {
	if _, ok := t.st.accounts[a.ID]; !ok {
		return game.ErrAccountNotFound
	}
	t.st.accounts[a.ID] = a
	return nil
}

func (t *tx) DeleteAccount(_ context.Context, id string) error {
	if _, ok := t.st.accounts[id]; !ok {
		return game.ErrAccountNotFound
	}
	delete(t.st.accounts, id)
	for k := range t.st.swords {
		if k.accountID == id {
			delete(t.st.swords, k)
		}
	}
	for k := range t.st.materials {
		if k.accountID == id {
			delete(t.st.materials, k)
		}
	}
	for k, v := range t.st.vouchers {
		if v.CreatorID == id {
			delete(t.st.vouchers, k)
		}
	}
	for k, g := range t.st.gifts {
		if g.ReceiverID == id {
			delete(t.st.gifts, k)
		}
	}
	for k, sess := range t.st.adSessions {
		if sess.AccountID == id {
			delete(t.st.adSessions, k)
		}
	}
	for k := range t.st.daily {
		if k.accountID == id {
			delete(t.st.daily, k)
		}
	}
	for k := range t.st.oneTime {
		if k.accountID == id {
			delete(t.st.oneTime, k)
		}
	}
	t.st.upgrades = filter(t.st.upgrades, func(h game.UpgradeHistory) bool { return h.AccountID != id })
	t.st.syntheses = filter(t.st.syntheses, func(h game.SynthesisHistory) bool { return h.AccountID != id })
	t.st.purchases = filter(t.st.purchases, func(p game.PurchaseRecord) bool { return p.AccountID != id })
	return nil
}

func filter[T any](in []T, keep func(T) bool) []T {
	out := in[:0:0]
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func (t *tx) SwordStock(_ context.Context, accountID string, tier int) (game.SwordStock, error) {
	s, ok := t.st.swords[swordKey{accountID, tier}]
	if !ok {
		return game.SwordStock{AccountID: accountID, Tier: tier}, nil
	}
	return s, nil
}

func (t *tx) SwordStocks(_ context.Context, accountID string) ([]game.SwordStock, error) {
	out := []game.SwordStock{}
	for k, s := range t.st.swords {
		if k.accountID == accountID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tier < out[j].Tier })
	return out, nil
}

func (t *tx) PutSwordStock(_ context.Context, s game.SwordStock) error {
	if s.IsMounted {
		for k, other := range t.st.swords {
			if k.accountID == s.AccountID && k.tier != s.Tier && other.IsMounted {
				return errMountConflict
			}
		}
	}
	t.st.swords[swordKey{s.AccountID, s.Tier}] = s
	return nil
}

func (t *tx) MaterialStock(_ context.Context, accountID string, materialID int64) (game.MaterialStock, error) {
	m, ok := t.st.materials[materialKey{accountID, materialID}]
	if !ok {
		return game.MaterialStock{AccountID: accountID, MaterialID: materialID}, nil
	}
	return m, nil
}

func (t *tx) MaterialStocks(_ context.Context, accountID string) ([]game.MaterialStock, error) {
	out := []game.MaterialStock{}
	for k, m := range t.st.materials {
		if k.accountID == accountID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MaterialID < out[j].MaterialID })
	return out, nil
}

func (t *tx) PutMaterialStock(_ context.Context, m game.MaterialStock) error {
	t.st.materials[materialKey{m.AccountID, m.MaterialID}] = m
	return nil
}

func (t *tx) InsertVoucher(_ context.Context, v game.Voucher) error {
	for _, other := range t.st.vouchers {
		if other.Code == v.Code {
			return game.ErrVoucherCodeTaken
		}
	}
	t.st.vouchers[v.ID] = v
	return nil
}

func (t *tx) Voucher(_ context.Context, id string) (game.Voucher, error) {
	v, ok := t.st.vouchers[id]
	if !ok {
		return game.Voucher{}, game.ErrVoucherNotFound
	}
	return v, nil
}

func (t *tx) VoucherByCode(_ context.Context, code string) (game.Voucher, error) {
	for _, v := range t.st.vouchers {
		if v.Code == code {
			return v, nil
		}
	}
	return game.Voucher{}, game.ErrVoucherNotFound
}

func (t *tx) Vouchers(_ context.Context, creatorID string) ([]game.Voucher, error) {
	out := []game.Voucher{}
	for _, v := range t.st.vouchers {
		if v.CreatorID == creatorID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (t *tx) UpdateVoucherIfPending(_ context.Context, v game.Voucher) (bool, error) {
	cur, ok := t.st.vouchers[v.ID]
	if !ok || cur.Status != game.VoucherPending {
		return false, nil
	}
	t.st.vouchers[v.ID] = v
	return true, nil
}

func (t *tx) InsertGift(_ context.Context, g game.Gift) error {
	t.st.gifts[g.ID] = g
	return nil
}

func (t *tx) Gift(_ context.Context, id string) (game.Gift, error) {
	g, ok := t.st.gifts[id]
	if !ok {
		return game.Gift{}, game.ErrGiftNotFound
	}
	return g, nil
}

func (t *tx) Gifts(_ context.Context, receiverID string) ([]game.Gift, error) {
	out := []game.Gift{}
	for _, g := range t.st.gifts {
		if g.ReceiverID == receiverID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (t *tx) SetGiftStatusIfPending(_ context.Context, id string, status game.GiftStatus, at time.Time) (bool, error) {
	g, ok := t.st.gifts[id]
	if !ok || g.Status != game.GiftPending {
		return false, nil
	}
	g.Status = status
	if status == game.GiftClaimed {
		g.ClaimedAt = &at
	}
	t.st.gifts[id] = g
	return true, nil
}

func (t *tx) InsertAdSession(_ context.Context, s game.AdSession) error {
	t.st.adSessions[s.Nonce] = s
	return nil
}

func (t *tx) AdSession(_ context.Context, nonce string) (game.AdSession, error) {
	s, ok := t.st.adSessions[nonce]
	if !ok {
		return game.AdSession{}, game.ErrSessionNotFound
	}
	return s, nil
}

func (t *tx) MarkAdSessionVerified(_ context.Context, nonce string) (bool, error) {
	s, ok := t.st.adSessions[nonce]
	if !ok || s.Verified {
		return false, nil
	}
	s.Verified = true
	t.st.adSessions[nonce] = s
	return true, nil
}

func (t *tx) DeleteAdSession(_ context.Context, nonce string) (bool, error) {
	if _, ok := t.st.adSessions[nonce]; !ok {
		return false, nil
	}
	delete(t.st.adSessions, nonce)
	return true, nil
}

func (t *tx) PurgeAdSessions(_ context.Context, createdBefore time.Time) (int64, error) {
	var n int64
	for k, s := range t.st.adSessions {
		if s.CreatedAt.Before(createdBefore) {
			delete(t.st.adSessions, k)
			n++
		}
	}
	return n, nil
}

func (t *tx) DailyMissionProgress(_ context.Context, accountID, missionID string) (game.DailyMissionProgress, bool, error) {
	p, ok := t.st.daily[progressKey{accountID, missionID}]
	return p, ok, nil
}

func (t *tx) PutDailyMissionProgress(_ context.Context, p game.DailyMissionProgress) error {
	t.st.daily[progressKey{p.AccountID, p.MissionID}] = p
	return nil
}

func (t *tx) OneTimeMissionProgress(_ context.Context, accountID, missionID string) (game.OneTimeMissionProgress, bool, error) {
	p, ok := t.st.oneTime[progressKey{accountID, missionID}]
	return p, ok, nil
}

func (t *tx) InsertOneTimeMissionProgress(_ context.Context, p game.OneTimeMissionProgress) error {
	k := progressKey{p.AccountID, p.MissionID}
	if _, ok := t.st.oneTime[k]; ok {
		return game.ErrMissionAlreadyClaimed
	}
	t.st.oneTime[k] = p
	return nil
}

func (t *tx) InsertUpgradeHistory(_ context.Context, h game.UpgradeHistory) error {
	t.st.upgrades = append(t.st.upgrades, h)
	return nil
}

func (t *tx) UpgradeHistory(_ context.Context, accountID string, limit int) ([]game.UpgradeHistory, error) {
	out := []game.UpgradeHistory{}
	for i := len(t.st.upgrades) - 1; i >= 0 && len(out) < limit; i-- {
		if t.st.upgrades[i].AccountID == accountID {
			out = append(out, t.st.upgrades[i])
		}
	}
	return out, nil
}

func (t *tx) InsertSynthesisHistory(_ context.Context, h game.SynthesisHistory) error {
	t.st.syntheses = append(t.st.syntheses, h)
	return nil
}

func (t *tx) InsertPurchase(_ context.Context, p game.PurchaseRecord) error {
	t.st.purchases = append(t.st.purchases, p)
	return nil
}

func within(at time.Time, f game.ActivityFilter) bool {
	return !at.Before(f.From) && !at.After(f.To)
}

func tierMatches(want *int, got int) bool {
	return want == nil || *want == got
}

func (t *tx) SumActivity(_ context.Context, accountID string, f game.ActivityFilter) (int64, error) {
	var total int64
	switch f.Kind {
	case game.ActivityBuySword, game.ActivityBuyMaterial, game.ActivityBuyShield:
		for _, p := range t.st.purchases {
			if p.AccountID != accountID || !within(p.CreatedAt, f) {
				continue
			}
			switch {
			case f.Kind == game.ActivityBuySword && p.Kind == game.PurchaseSword:
				if p.Tier != nil && tierMatches(f.Tier, *p.Tier) {
					total += p.Quantity
				}
			case f.Kind == game.ActivityBuyMaterial && p.Kind == game.PurchaseMaterial:
				if p.MaterialID != nil && (f.MaterialID == nil || *f.MaterialID == *p.MaterialID) {
					total += p.Quantity
				}
			case f.Kind == game.ActivityBuyShield && p.Kind == game.PurchaseShield:
				total += p.Quantity
			}
		}
	case game.ActivityUpgrade:
		for _, h := range t.st.upgrades {
			if h.AccountID == accountID && within(h.CreatedAt, f) && tierMatches(f.Tier, h.Tier) {
				total++
			}
		}
	case game.ActivitySynthesis:
		for _, h := range t.st.syntheses {
			if h.AccountID == accountID && within(h.CreatedAt, f) && tierMatches(f.Tier, h.Tier) {
				total++
			}
		}
	}
	return total, nil
}
