package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"swordsmith/internal/catalog"
)

type MissionClaim struct {
	MissionID string `json:"mission_id"`
	Grant     Grant  `json:"grant"`
	Gold      int64  `json:"gold"`
}

type DailyMissionView struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	Condition    catalog.ConditionSpec `json:"condition"`
	Reward       catalog.RewardSpec    `json:"reward"`
	Eligible     bool                  `json:"eligible"`
	ClaimedToday bool                  `json:"claimed_today"`
	TimesClaimed int64                 `json:"times_claimed"`
}

type OneTimeMissionView struct {
	ID          string                  `json:"id"`
	Title       string                  `json:"title"`
	Conditions  []catalog.ConditionSpec `json:"conditions"`
	Reward      catalog.RewardSpec      `json:"reward"`
	TargetValue int64                   `json:"target_value"`
	Progress    int64                   `json:"progress"`
	Open        bool                    `json:"open"`
	Claimed     bool                    `json:"claimed"`
	StartAt     time.Time               `json:"start_at"`
	ExpiresAt   time.Time               `json:"expires_at"`
}

type MissionBoard struct {
	Daily   []DailyMissionView   `json:"daily"`
	OneTime []OneTimeMissionView `json:"one_time"`
}

func (s *Service) dailyMission(ctx context.Context, id string) (catalog.DailyMission, error) {
	m, err := s.catalog.DailyMission(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return m, fmt.Errorf("%w: %s", ErrMissionNotFound, id)
	}
	return m, err
}

func (s *Service) oneTimeMission(ctx context.Context, id string) (catalog.OneTimeMission, error) {
	m, err := s.catalog.OneTimeMission(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return m, fmt.Errorf("%w: %s", ErrMissionNotFound, id)
	}
	return m, err
}

func dailyEligible(acct *Account, settings catalog.Settings, cond catalog.DailyCondition) (bool, error) {
	switch c := cond.(type) {
	case catalog.CompleteAllAdsCondition:
		limit := settings.DailyAdCap(c.RewardType)
		return limit > 0 && acct.DailyAds(c.RewardType) >= limit, nil
	default:
		return false, fmt.Errorf("%w: %T", catalog.ErrUnsupportedCondition, cond)
	}
}

// ClaimDailyMission pays out a daily mission once per UTC calendar day.
func (s *Service) ClaimDailyMission(ctx context.Context, accountID, missionID string) (MissionClaim, error) {
	m, err := s.dailyMission(ctx, missionID)
	if err != nil {
		return MissionClaim{}, err
	}
	if !m.Active {
		return MissionClaim{}, ErrMissionInactive
	}
	if err := s.checkReward(ctx, m.Reward); err != nil {
		return MissionClaim{}, err
	}
	settings, err := s.catalog.Settings(ctx)
	if err != nil {
		return MissionClaim{}, err
	}

	var out MissionClaim
	err = s.withAccount(ctx, accountID, func(ctx context.Context, tx Tx, acct *Account) error {
		ok, err := dailyEligible(acct, settings, m.Condition)
		if err != nil {
			return err
		}
		if !ok {
			return ErrMissionNotEligible
		}
		now := s.clock()
		progress, found, err := tx.DailyMissionProgress(ctx, accountID, missionID)
		if err != nil {
			return err
		}
		if found && sameUTCDay(progress.LastClaimedAt, now) {
			return ErrMissionAlreadyClaimed
		}
		grant, err := applyReward(ctx, tx, acct, m.Reward)
		if err != nil {
			return err
		}
		acct.TotalMissionsDone++
		progress.AccountID = accountID
		progress.MissionID = missionID
		progress.TimesClaimed++
		progress.LastClaimedAt = now
		if err := tx.PutDailyMissionProgress(ctx, progress); err != nil {
			return err
		}
		out = MissionClaim{MissionID: missionID, Grant: grant, Gold: acct.Gold}
		return nil
	})
	if err != nil {
		return MissionClaim{}, err
	}
	s.log.Info("daily mission claimed", "account_id", accountID, "mission_id", missionID)
	return out, nil
}

func activityFilter(cond catalog.Condition, from, to time.Time) (ActivityFilter, error) {
	f := ActivityFilter{From: from, To: to}
	switch c := cond.(type) {
	case catalog.BuySwordCondition:
		f.Kind, f.Tier = ActivityBuySword, c.Tier
	case catalog.BuyMaterialCondition:
		f.Kind, f.MaterialID = ActivityBuyMaterial, c.MaterialID
	case catalog.BuyShieldCondition:
		f.Kind = ActivityBuyShield
	case catalog.UpgradeSwordCondition:
		f.Kind, f.Tier = ActivityUpgrade, c.Tier
	case catalog.SynthesizeCondition:
		f.Kind, f.Tier = ActivitySynthesis, c.Tier
	default:
		return f, fmt.Errorf("%w: %T", catalog.ErrUnsupportedCondition, cond)
	}
	return f, nil
}

// oneTimeProgress sums the account's history for every condition inside the
// mission window.
func oneTimeProgress(ctx context.Context, tx Tx, accountID string, m catalog.OneTimeMission) (int64, error) {
	var total int64
	for _, cond := range m.Conditions {
		f, err := activityFilter(cond, m.StartAt, m.ExpiresAt)
		if err != nil {
			return 0, err
		}
		n, err := tx.SumActivity(ctx, accountID, f)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// ClaimOneTimeMission pays out a one-time mission whose summed progress has
// reached its target. It can be claimed once, and only while its window is open.
func (s *Service) ClaimOneTimeMission(ctx context.Context, accountID, missionID string) (MissionClaim, error) {
	m, err := s.oneTimeMission(ctx, missionID)
	if err != nil {
		return MissionClaim{}, err
	}
	if !m.Active {
		return MissionClaim{}, ErrMissionInactive
	}
	if !m.Open(s.clock()) {
		return MissionClaim{}, ErrMissionClosed
	}
	if err := s.checkReward(ctx, m.Reward); err != nil {
		return MissionClaim{}, err
	}

	var out MissionClaim
	err = s.withAccount(ctx, accountID, func(ctx context.Context, tx Tx, acct *Account) error {
		_, claimed, err := tx.OneTimeMissionProgress(ctx, accountID, missionID)
		if err != nil {
			return err
		}
		if claimed {
			return ErrMissionAlreadyClaimed
		}
		progress, err := oneTimeProgress(ctx, tx, accountID, m)
		if err != nil {
			return err
		}
		if progress < m.TargetValue {
			return fmt.Errorf("%w: progress %d of %d", ErrMissionNotEligible, progress, m.TargetValue)
		}
		grant, err := applyReward(ctx, tx, acct, m.Reward)
		if err != nil {
			return err
		}
		acct.TotalMissionsDone++
		if err := tx.InsertOneTimeMissionProgress(ctx, OneTimeMissionProgress{
			AccountID: accountID,
			MissionID: missionID,
			ClaimedAt: s.clock(),
		}); err != nil {
			return err
		}
		out = MissionClaim{MissionID: missionID, Grant: grant, Gold: acct.Gold}
		return nil
	})
	if err != nil {
		return MissionClaim{}, err
	}
	s.log.Info("mission claimed", "account_id", accountID, "mission_id", missionID)
	return out, nil
}

// ListMissions returns every active mission with the caller's progress.
func (s *Service) ListMissions(ctx context.Context, accountID string) (MissionBoard, error) {
	daily, err := s.catalog.DailyMissions(ctx)
	if err != nil {
		return MissionBoard{}, err
	}
	oneTime, err := s.catalog.OneTimeMissions(ctx)
	if err != nil {
		return MissionBoard{}, err
	}
	settings, err := s.catalog.Settings(ctx)
	if err != nil {
		return MissionBoard{}, err
	}

	board := MissionBoard{Daily: []DailyMissionView{}, OneTime: []OneTimeMissionView{}}
	err = s.viewAccount(ctx, accountID, func(ctx context.Context, tx Tx, acct Account) error {
		now := s.clock()
		for _, m := range daily {
			if !m.Active {
				continue
			}
			view := DailyMissionView{ID: m.ID, Title: m.Title, Condition: m.Condition.Spec(), Reward: m.Reward.Spec()}
			ok, err := dailyEligible(&acct, settings, m.Condition)
			if err != nil {
				return err
			}
			view.Eligible = ok
			progress, found, err := tx.DailyMissionProgress(ctx, accountID, m.ID)
			if err != nil {
				return err
			}
			if found {
				view.TimesClaimed = progress.TimesClaimed
				view.ClaimedToday = sameUTCDay(progress.LastClaimedAt, now)
			}
			board.Daily = append(board.Daily, view)
		}
		for _, m := range oneTime {
			if !m.Active {
				continue
			}
			view := OneTimeMissionView{
				ID:          m.ID,
				Title:       m.Title,
				Reward:      m.Reward.Spec(),
				TargetValue: m.TargetValue,
				Open:        m.Open(now),
				StartAt:     m.StartAt,
				ExpiresAt:   m.ExpiresAt,
			}
			for _, c := range m.Conditions {
				view.Conditions = append(view.Conditions, c.Spec())
			}
			_, claimed, err := tx.OneTimeMissionProgress(ctx, accountID, m.ID)
			if err != nil {
				return err
			}
			view.Claimed = claimed
			if view.Progress, err = oneTimeProgress(ctx, tx, accountID, m); err != nil {
				return err
			}
			board.OneTime = append(board.OneTime, view)
		}
		return nil
	})
	if err != nil {
		return MissionBoard{}, err
	}
	return board, nil
}
