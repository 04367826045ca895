// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

// Package circulation holds the wire shapes of the external circulation API.
//
// The API wraps every response in the same envelope: a boolean success flag,
// a numeric code, a message, and a nested data object carrying list and
// totalCount. These shapes exist only at the client boundary; everything
// above the client works with the typed models in internal/models.
package circulation

// Envelope is the response wrapper shared by every circulation endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// LoginResponse is the body returned by the login endpoint. The session
// cookies arrive out of band via Set-Cookie headers.
type LoginResponse struct {
	Envelope
	Data struct {
		AccessToken string `json:"accessToken"`
	} `json:"data"`
}

// ChargeEntry is one active loan in the paginated charge list.
type ChargeEntry struct {
	ChargeKey   string `json:"chargeKey"`
	ItemBarcode string `json:"itemBarcode"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	ISBN        string `json:"isbn"`
	ChargeDate  string `json:"chargeDate"`
	DueDate     string `json:"dueDate"`
	RenewCount  int    `json:"renewCount"`
}

// ChargeListResponse is the paginated charge list envelope.
type ChargeListResponse struct {
	Envelope
	Data struct {
		List       []ChargeEntry `json:"list"`
		TotalCount int           `json:"totalCount"`
	} `json:"data"`
}

// DischargeEntry is one returned loan in the paginated discharge history.
type DischargeEntry struct {
	ChargeKey     string `json:"chargeKey"`
	ItemBarcode   string `json:"itemBarcode"`
	Title         string `json:"title"`
	DischargeDate string `json:"dischargeDate"`
}

// DischargeListResponse is the paginated discharge history envelope.
type DischargeListResponse struct {
	Envelope
	Data struct {
		List       []DischargeEntry `json:"list"`
		TotalCount int              `json:"totalCount"`
	} `json:"data"`
}
