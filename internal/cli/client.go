package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"swordsmith/internal/catalog"
	"swordsmith/internal/game"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Message string
	Kind    string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("api status %d (%s): %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Dashboard(ctx context.Context) (game.Dashboard, error) {
	var out game.Dashboard
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/dashboard", nil, &out)
	return out, err
}

func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.jsonRequest(ctx, http.MethodDelete, "/v1/account", nil, nil)
}

func (c *Client) SwordLevels(ctx context.Context) ([]catalog.SwordLevel, error) {
	var out struct {
		Swords []catalog.SwordLevel `json:"swords"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/catalog/swords", nil, &out)
	return out.Swords, err
}

func (c *Client) Materials(ctx context.Context) ([]catalog.Material, error) {
	var out struct {
		Materials []catalog.Material `json:"materials"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/catalog/materials", nil, &out)
	return out.Materials, err
}

func (c *Client) Mount(ctx context.Context, tier int) (game.AnvilState, error) {
	var out game.AnvilState
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/anvil/mount", map[string]any{"tier": tier}, &out)
	return out, err
}

func (c *Client) Unmount(ctx context.Context) (game.AnvilState, error) {
	var out game.AnvilState
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/anvil/unmount", nil, &out)
	return out, err
}

func (c *Client) Upgrade(ctx context.Context, tier int) (game.UpgradeResult, error) {
	var out game.UpgradeResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/anvil/upgrade", map[string]any{"tier": tier}, &out)
	return out, err
}

func (c *Client) UpgradeLog(ctx context.Context, limit int) ([]game.UpgradeHistory, error) {
	var out struct {
		History []game.UpgradeHistory `json:"history"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, fmt.Sprintf("/v1/anvil/history?limit=%d", limit), nil, &out)
	return out.History, err
}

func (c *Client) SetShieldProtection(ctx context.Context, enabled bool) (game.Account, error) {
	var out game.Account
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/shield/protection", map[string]any{"enabled": enabled}, &out)
	return out, err
}

func (c *Client) BuySword(ctx context.Context, tier int, qty int64) (game.TradeResult, error) {
	return c.trade(ctx, "/v1/market/swords/buy", map[string]any{"tier": tier, "quantity": qty})
}

func (c *Client) SellSword(ctx context.Context, tier int, qty int64) (game.TradeResult, error) {
	return c.trade(ctx, "/v1/market/swords/sell", map[string]any{"tier": tier, "quantity": qty})
}

func (c *Client) BuyMaterial(ctx context.Context, materialID, qty int64) (game.TradeResult, error) {
	return c.trade(ctx, "/v1/market/materials/buy", map[string]any{"material_id": materialID, "quantity": qty})
}

func (c *Client) SellMaterial(ctx context.Context, materialID, qty int64) (game.TradeResult, error) {
	return c.trade(ctx, "/v1/market/materials/sell", map[string]any{"material_id": materialID, "quantity": qty})
}

func (c *Client) BuyShield(ctx context.Context, qty int64) (game.TradeResult, error) {
	return c.trade(ctx, "/v1/market/shields/buy", map[string]any{"quantity": qty})
}

func (c *Client) trade(ctx context.Context, path string, body map[string]any) (game.TradeResult, error) {
	var out game.TradeResult
	err := c.jsonRequest(ctx, http.MethodPost, path, body, &out)
	return out, err
}

func (c *Client) Synthesize(ctx context.Context, tier int) (game.SynthesisResult, error) {
	var out game.SynthesisResult
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/synthesis", map[string]any{"tier": tier}, &out)
	return out, err
}

func (c *Client) ListVouchers(ctx context.Context) ([]game.Voucher, error) {
	var out struct {
		Vouchers []game.Voucher `json:"vouchers"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/vouchers", nil, &out)
	return out.Vouchers, err
}

func (c *Client) CreateVoucher(ctx context.Context, amount int64) (game.Voucher, error) {
	var out game.Voucher
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/vouchers", map[string]any{"gold_amount": amount}, &out)
	return out, err
}

func (c *Client) RedeemVoucher(ctx context.Context, code string) (game.Voucher, error) {
	var out game.Voucher
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/vouchers/redeem", map[string]any{"code": code}, &out)
	return out, err
}

func (c *Client) AssignRedeemer(ctx context.Context, voucherID, email string) (game.Voucher, error) {
	var out game.Voucher
	err := c.jsonRequest(ctx, http.MethodPut, "/v1/vouchers/"+url.PathEscape(voucherID)+"/redeemer",
		map[string]any{"email": email}, &out)
	return out, err
}

func (c *Client) RemoveRedeemer(ctx context.Context, voucherID string) (game.Voucher, error) {
	var out game.Voucher
	err := c.jsonRequest(ctx, http.MethodDelete, "/v1/vouchers/"+url.PathEscape(voucherID)+"/redeemer", nil, &out)
	return out, err
}

func (c *Client) CancelVoucher(ctx context.Context, voucherID string) (game.Voucher, error) {
	var out game.Voucher
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/vouchers/"+url.PathEscape(voucherID)+"/cancel", nil, &out)
	return out, err
}

// Gifts decodes into raw maps since a gift's reward is a tagged union on the wire.
func (c *Client) Gifts(ctx context.Context) ([]map[string]any, error) {
	var out struct {
		Gifts []map[string]any `json:"gifts"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/gifts", nil, &out)
	return out.Gifts, err
}

func (c *Client) ClaimGift(ctx context.Context, giftID string) (game.Grant, int64, error) {
	var out struct {
		Grant game.Grant `json:"grant"`
		Gold  int64      `json:"gold"`
	}
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/gifts/"+url.PathEscape(giftID)+"/claim", nil, &out)
	return out.Grant, out.Gold, err
}

func (c *Client) StartAdSession(ctx context.Context, rewardType string) (game.AdSession, error) {
	var out game.AdSession
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/ads/sessions", map[string]any{"reward_type": rewardType}, &out)
	return out, err
}

func (c *Client) ClaimAdReward(ctx context.Context, nonce string) (game.AdClaim, error) {
	var out game.AdClaim
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/ads/sessions/"+url.PathEscape(nonce)+"/claim", nil, &out)
	return out, err
}

func (c *Client) Missions(ctx context.Context) (game.MissionBoard, error) {
	var out game.MissionBoard
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/missions", nil, &out)
	return out, err
}

func (c *Client) ClaimDailyMission(ctx context.Context, id string) (game.MissionClaim, error) {
	var out game.MissionClaim
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/missions/daily/"+url.PathEscape(id)+"/claim", nil, &out)
	return out, err
}

func (c *Client) ClaimOneTimeMission(ctx context.Context, id string) (game.MissionClaim, error) {
	var out game.MissionClaim
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/missions/one-time/"+url.PathEscape(id)+"/claim", nil, &out)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var payload struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Kind = payload.Kind
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
