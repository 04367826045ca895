// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package circulation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/jdwhite/circulate/internal/config"
	"github.com/jdwhite/circulate/internal/models"
	wire "github.com/jdwhite/circulate/internal/models/circulation"
)

// maxPages caps pagination loops against a misbehaving totalCount.
const maxPages = 100

// ChargeSource is the surface the reconciler consumes. Implemented by
// Client and by the circuit breaker wrapper.
type ChargeSource interface {
	ListCharges(ctx context.Context) ([]models.LoanCharge, error)
	ListDischarges(ctx context.Context) ([]models.LoanCharge, error)
}

// Client is the typed circulation API client. It owns the session manager
// and maps the API's response envelopes (success flag, numeric code, nested
// data.list) into internal models immediately.
type Client struct {
	baseURL  string
	username string
	password string
	pageSize int

	fetcher  *Fetcher
	opts     RequestOptions
	sessions *SessionManager
	logger   zerolog.Logger
}

// NewClient creates a circulation client from configuration.
func NewClient(cfg config.CirculationConfig, logger zerolog.Logger) *Client {
	c := &Client{
		baseURL:  cfg.BaseURL,
		username: cfg.Username,
		password: cfg.Password,
		pageSize: cfg.PageSize,
		fetcher:  NewFetcher(cfg.RatePerSecond, logger),
		opts: RequestOptions{
			Timeout:      cfg.Timeout,
			Retries:      cfg.Retries,
			RetryBackoff: cfg.RetryBackoff,
		},
		logger: logger.With().Str("component", "circulation").Logger(),
	}
	c.sessions = NewSessionManager(c.login, logger)
	return c
}

// Sessions exposes the session manager so jobs can reset it per run.
func (c *Client) Sessions() *SessionManager { return c.sessions }

// login posts credentials and builds a session from the access token and
// response cookies.
func (c *Client) login(ctx context.Context) (*Session, error) {
	payload, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal login payload: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")

	resp, err := c.fetcher.Do(ctx, http.MethodPost, c.baseURL+"/api/v1/auth/login", header, payload, c.opts)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &AuthError{Status: resp.StatusCode}
	}
	if !resp.OK() {
		return nil, fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var body wire.LoginResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	if !body.Success {
		return nil, &AuthError{Err: &APIError{Code: body.Code, Message: body.Message}}
	}
	if body.Data.AccessToken == "" {
		return nil, &AuthError{Err: fmt.Errorf("login succeeded but returned no access token")}
	}

	return &Session{
		AccessToken: body.Data.AccessToken,
		Cookies:     resp.Cookies,
	}, nil
}

// authorizedGet performs a GET with the cached session, re-authenticating
// exactly once on 401/403 before surfacing a terminal AuthError.
func (c *Client) authorizedGet(ctx context.Context, path string, query url.Values) (*Response, error) {
	resp, err := c.doAuthorized(ctx, path, query)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return resp, nil
	}

	c.sessions.Invalidate()
	resp, err = c.doAuthorized(ctx, path, query)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &AuthError{Status: resp.StatusCode}
	}
	return resp, nil
}

func (c *Client) doAuthorized(ctx context.Context, path string, query url.Values) (*Response, error) {
	session, err := c.sessions.GetSession(ctx)
	if err != nil {
		return nil, err
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+session.AccessToken)
	header.Set("Accept", "application/json")
	for _, cookie := range session.Cookies {
		header.Add("Cookie", cookie.String())
	}

	return c.fetcher.Do(ctx, http.MethodGet, reqURL, header, nil, c.opts)
}

// ListCharges fetches the full current charge list, walking offset/max
// pages until totalCount is reached.
func (c *Client) ListCharges(ctx context.Context) ([]models.LoanCharge, error) {
	var charges []models.LoanCharge

	for page := 0; page < maxPages; page++ {
		query := url.Values{}
		query.Set("offset", strconv.Itoa(len(charges)))
		query.Set("max", strconv.Itoa(c.pageSize))

		resp, err := c.authorizedGet(ctx, "/api/v1/charges", query)
		if err != nil {
			return nil, err
		}
		if !resp.OK() {
			return nil, fmt.Errorf("charge list failed with status %d", resp.StatusCode)
		}

		var body wire.ChargeListResponse
		if err := json.Unmarshal(resp.Body, &body); err != nil {
			return nil, fmt.Errorf("failed to decode charge list: %w", err)
		}
		if !body.Success {
			return nil, &APIError{Code: body.Code, Message: body.Message}
		}

		for i := range body.Data.List {
			charge, err := mapCharge(&body.Data.List[i])
			if err != nil {
				return nil, err
			}
			charges = append(charges, charge)
		}

		if len(body.Data.List) == 0 || len(charges) >= body.Data.TotalCount {
			break
		}
	}

	c.logger.Debug().Int("count", len(charges)).Msg("Fetched charge list")
	return charges, nil
}

// ListDischarges fetches the discharge history. A failure here is wrapped
// as *PartialDataError so the reconciler can degrade instead of aborting.
func (c *Client) ListDischarges(ctx context.Context) ([]models.LoanCharge, error) {
	var discharges []models.LoanCharge

	for page := 0; page < maxPages; page++ {
		query := url.Values{}
		query.Set("offset", strconv.Itoa(len(discharges)))
		query.Set("max", strconv.Itoa(c.pageSize))

		resp, err := c.authorizedGet(ctx, "/api/v1/discharges", query)
		if err != nil {
			if IsAuthError(err) {
				return nil, err
			}
			return nil, &PartialDataError{Err: err}
		}
		if !resp.OK() {
			return nil, &PartialDataError{Err: fmt.Errorf("discharge history failed with status %d", resp.StatusCode)}
		}

		var body wire.DischargeListResponse
		if err := json.Unmarshal(resp.Body, &body); err != nil {
			return nil, &PartialDataError{Err: fmt.Errorf("failed to decode discharge history: %w", err)}
		}
		if !body.Success {
			return nil, &PartialDataError{Err: &APIError{Code: body.Code, Message: body.Message}}
		}

		for i := range body.Data.List {
			discharge, err := mapDischarge(&body.Data.List[i])
			if err != nil {
				return nil, &PartialDataError{Err: err}
			}
			discharges = append(discharges, discharge)
		}

		if len(body.Data.List) == 0 || len(discharges) >= body.Data.TotalCount {
			break
		}
	}

	c.logger.Debug().Int("count", len(discharges)).Msg("Fetched discharge history")
	return discharges, nil
}

// mapCharge converts a wire charge entry into the internal model.
func mapCharge(entry *wire.ChargeEntry) (models.LoanCharge, error) {
	chargeDate, err := parseWireDate(entry.ChargeDate)
	if err != nil {
		return models.LoanCharge{}, fmt.Errorf("charge %s: bad chargeDate: %w", entry.ChargeKey, err)
	}
	dueDate, err := parseWireDate(entry.DueDate)
	if err != nil {
		return models.LoanCharge{}, fmt.Errorf("charge %s: bad dueDate: %w", entry.ChargeKey, err)
	}

	return models.LoanCharge{
		ChargeID:   entry.ChargeKey,
		VolumeID:   entry.ItemBarcode,
		Title:      entry.Title,
		Author:     entry.Author,
		ISBN:       entry.ISBN,
		ChargeDate: chargeDate,
		DueDate:    dueDate,
		RenewCount: entry.RenewCount,
	}, nil
}

// mapDischarge converts a wire discharge entry into the internal model with
// the discharge date set.
func mapDischarge(entry *wire.DischargeEntry) (models.LoanCharge, error) {
	dischargeDate, err := parseWireDate(entry.DischargeDate)
	if err != nil {
		return models.LoanCharge{}, fmt.Errorf("discharge %s: bad dischargeDate: %w", entry.ChargeKey, err)
	}

	return models.LoanCharge{
		ChargeID:      entry.ChargeKey,
		VolumeID:      entry.ItemBarcode,
		Title:         entry.Title,
		DischargeDate: &dischargeDate,
	}, nil
}

// parseWireDate accepts the two date shapes the API emits: full RFC 3339
// timestamps and bare dates.
func parseWireDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}
