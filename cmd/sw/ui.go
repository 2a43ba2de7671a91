package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"swordsmith/internal/catalog"
	"swordsmith/internal/game"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Fprintln(os.Stderr, msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

// promptSecret reads without echo when stdin is a terminal.
func promptSecret(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptRequired(label)
	}
	for {
		fmt.Printf("%s: ", label)
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		text := strings.TrimSpace(string(raw))
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func renderDashboard(d game.Dashboard) {
	acct := d.Account
	accent.Printf("\n== %s ==\n", acct.Email)
	fmt.Printf("Gold:               %s\n", comma(acct.Gold))
	fmt.Printf("Trust points:       %s\n", comma(acct.TrustPoints))
	fmt.Printf("Shields:            %d (protection %s)\n", acct.ShieldCount, onOff(acct.ShieldProtectionEnabled))
	fmt.Printf("Anvil:              %s\n", anvilLabel(acct.AnvilSwordTier))
	fmt.Printf("Ads today:          gold %d, shield %d, old sword %d\n", acct.DailyGoldAds, acct.DailyShieldAds, acct.DailyOldSwordAds)
	if acct.IsBanned {
		danger.Println("This account is banned.")
	}

	fmt.Println()
	accent.Println("Swords")
	if len(d.Swords) == 0 {
		printInfo("No swords yet.")
	} else {
		fmt.Printf("%-6s %10s %10s %10s %8s\n", "TIER", "UNSOLD", "SOLD", "BROKEN", "ANVIL")
		for _, s := range d.Swords {
			mounted := ""
			if s.IsMounted {
				mounted = success.Sprint("*")
			}
			fmt.Printf("%-6d %10d %10d %10d %8s\n", s.Tier, s.Unsold, s.Sold, s.Broken, mounted)
		}
	}

	fmt.Println()
	accent.Println("Materials")
	if len(d.Materials) == 0 {
		printInfo("No materials yet.")
	} else {
		fmt.Printf("%-6s %10s %10s\n", "ID", "UNSOLD", "SOLD")
		for _, m := range d.Materials {
			fmt.Printf("%-6d %10d %10d\n", m.MaterialID, m.Unsold, m.Sold)
		}
	}
	fmt.Println()
}

func renderSwordLevels(levels []catalog.SwordLevel) {
	accent.Println("\n== SWORDS ==")
	fmt.Printf("%-5s %-22s %10s %10s %10s %8s %10s\n", "TIER", "NAME", "BUY", "SELL", "UPGRADE", "RATE", "SYNTH")
	for _, l := range levels {
		buy := "-"
		if l.Purchasable {
			buy = comma(l.BuyingPrice)
		}
		synth := "-"
		if len(l.Recipe) > 0 {
			synth = comma(l.SynthesizeCost)
		}
		fmt.Printf("%-5d %-22s %10s %10s %10s %7.1f%% %10s\n",
			l.Tier, truncate(l.Name, 22), buy, comma(l.SellingPrice), comma(l.UpgradeCost), l.SuccessRate, synth)
	}
	fmt.Println()
}

func renderMaterials(mats []catalog.Material) {
	accent.Println("\n== MATERIALS ==")
	fmt.Printf("%-5s %-22s %10s %10s\n", "ID", "NAME", "BUY", "SELL")
	for _, m := range mats {
		buy := "-"
		if m.Purchasable {
			buy = comma(m.BuyingPrice)
		}
		fmt.Printf("%-5d %-22s %10s %10s\n", m.ID, truncate(m.Name, 22), buy, comma(m.SellingPrice))
	}
	fmt.Println()
}

func renderTrade(title string, res game.TradeResult) {
	printSuccess(title)
	fmt.Printf("Gold:    %s (%s)\n", comma(res.Gold), colorizeDelta(res.GoldDelta))
	fmt.Printf("Shields: %d\n", res.Shields)
	fmt.Printf("Anvil:   %s\n", anvilLabel(res.Anvil))
}

func renderUpgrade(res game.UpgradeResult) {
	switch {
	case res.Success:
		success.Printf("Upgrade succeeded: tier %d -> %d\n", res.Tier, *res.NewTier)
	case res.ShieldUsed:
		warn.Printf("Upgrade failed, a shield saved the sword (%d left)\n", res.Shields)
	default:
		danger.Printf("Upgrade failed, the tier %d sword broke\n", res.Tier)
	}
	if res.Drop != nil {
		fmt.Printf("Salvaged %d x material %d\n", res.Drop.Quantity, res.Drop.MaterialID)
	}
	fmt.Printf("Spent %s gold, %s left. Anvil: %s\n", comma(res.GoldSpent), comma(res.Gold), anvilLabel(res.Anvil))
}

func renderUpgradeLog(rows []game.UpgradeHistory) {
	if len(rows) == 0 {
		printInfo("No upgrades yet.")
		return
	}
	fmt.Printf("%-20s %5s %8s %-8s %-7s %s\n", "WHEN", "TIER", "GOLD", "RESULT", "SHIELD", "DROP")
	for _, h := range rows {
		result := success.Sprint("ok")
		if !h.Success {
			result = danger.Sprint("failed")
		}
		drop := ""
		if h.DropMaterialID != nil {
			drop = fmt.Sprintf("%d x #%d", h.DropQuantity, *h.DropMaterialID)
		}
		fmt.Printf("%-20s %5d %8s %-8s %-7s %s\n",
			h.CreatedAt.Local().Format("2006-01-02 15:04"), h.Tier, comma(h.GoldSpent), result, yesNo(h.ShieldUsed), drop)
	}
}

func renderVouchers(list []game.Voucher) {
	if len(list) == 0 {
		printInfo("No vouchers yet.")
		return
	}
	fmt.Printf("%-36s %-16s %10s %-10s %s\n", "ID", "CODE", "GOLD", "STATUS", "REDEEMER")
	for _, v := range list {
		redeemer := "anyone"
		if v.AllowedRedeemerID != nil {
			redeemer = *v.AllowedRedeemerID
		}
		fmt.Printf("%-36s %-16s %10s %-10s %s\n", v.ID, v.Code, comma(v.GoldAmount), v.Status, redeemer)
	}
}

func renderGifts(gifts []map[string]any) {
	if len(gifts) == 0 {
		printInfo("No gifts.")
		return
	}
	fmt.Printf("%-36s %-10s %s\n", "ID", "STATUS", "REWARD")
	for _, g := range gifts {
		reward := ""
		if r, ok := g["reward"].(map[string]any); ok {
			reward = rewardLabel(r)
		}
		fmt.Printf("%-36v %-10v %s\n", g["id"], g["status"], reward)
	}
}

func renderMissions(board game.MissionBoard) {
	accent.Println("\n== DAILY ==")
	if len(board.Daily) == 0 {
		printInfo("No daily missions.")
	}
	for _, m := range board.Daily {
		state := neutral.Sprint("in progress")
		switch {
		case m.ClaimedToday:
			state = success.Sprint("claimed")
		case m.Eligible:
			state = warn.Sprint("ready")
		}
		fmt.Printf("%-24s %-36s %s\n", m.ID, truncate(m.Title, 36), state)
	}

	accent.Println("\n== ONE-TIME ==")
	if len(board.OneTime) == 0 {
		printInfo("No missions.")
	}
	for _, m := range board.OneTime {
		state := fmt.Sprintf("%d/%d", m.Progress, m.TargetValue)
		switch {
		case m.Claimed:
			state = success.Sprint("claimed")
		case !m.Open:
			state = neutral.Sprint("closed")
		case m.Progress >= m.TargetValue:
			state = warn.Sprint("ready")
		}
		fmt.Printf("%-24s %-36s %s (until %s)\n", m.ID, truncate(m.Title, 36), state, m.ExpiresAt.Local().Format("2006-01-02"))
	}
	fmt.Println()
}

func grantLabel(g game.Grant) string {
	switch g.Type {
	case catalog.RewardTypeGold:
		return fmt.Sprintf("%s gold", comma(g.Amount))
	case catalog.RewardTypeTrustPoints:
		return fmt.Sprintf("%d trust points", g.Amount)
	case catalog.RewardTypeShield:
		return fmt.Sprintf("%d shield(s)", g.Amount)
	case catalog.RewardTypeMaterial:
		return fmt.Sprintf("%d x material %d", g.Quantity, g.MaterialID)
	case catalog.RewardTypeSword:
		tier := 0
		if g.Tier != nil {
			tier = *g.Tier
		}
		return fmt.Sprintf("%d x tier %d sword", g.Quantity, tier)
	default:
		return g.Type
	}
}

func rewardLabel(r map[string]any) string {
	num := func(key string) int64 {
		v, _ := r[key].(float64)
		return int64(v)
	}
	tier := int(num("tier"))
	t, _ := r["type"].(string)
	return grantLabel(game.Grant{
		Type:       t,
		Amount:     num("amount"),
		MaterialID: num("material_id"),
		Tier:       &tier,
		Quantity:   num("quantity"),
	})
}

func anvilLabel(tier *int) string {
	if tier == nil {
		return "empty"
	}
	return fmt.Sprintf("tier %d", *tier)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func colorizeDelta(v int64) string {
	text := comma(v)
	switch {
	case v > 0:
		return success.Sprint("+" + text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func comma(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	b.WriteString(sign)
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		b.WriteByte(',')
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
