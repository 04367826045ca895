// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package circulation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jdwhite/circulate/internal/config"
)

// fakeCirculationAPI is an in-process stand-in for the circulation system.
type fakeCirculationAPI struct {
	t *testing.T

	logins      atomic.Int32
	chargeCalls atomic.Int32

	// rejectToken, when set, makes charge requests bearing it come back 401.
	rejectToken string

	charges        []string // chargeKeys served, one page entry each
	dischargeFails bool
}

func (f *fakeCirculationAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		n := f.logins.Add(1)
		w.Header().Set("Content-Type", "application/json")
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: fmt.Sprintf("cookie-%d", n)})
		fmt.Fprintf(w, `{"success":true,"code":0,"message":"ok","data":{"accessToken":"token-%d"}}`, n)
	})

	mux.HandleFunc("GET /api/v1/charges", func(w http.ResponseWriter, r *http.Request) {
		f.chargeCalls.Add(1)
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == f.rejectToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		max, _ := strconv.Atoi(r.URL.Query().Get("max"))
		if max <= 0 {
			f.t.Errorf("charges request without max param")
			max = 1
		}

		var entries []string
		for i := offset; i < len(f.charges) && i < offset+max; i++ {
			entries = append(entries, fmt.Sprintf(
				`{"chargeKey":%q,"itemBarcode":"B%d","title":"Book %d","author":"Author","isbn":"isbn","chargeDate":"2026-08-01","dueDate":"2026-09-15","renewCount":1}`,
				f.charges[i], i, i))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"success":true,"code":0,"message":"ok","data":{"list":[%s],"totalCount":%d}}`,
			strings.Join(entries, ","), len(f.charges))
	})

	mux.HandleFunc("GET /api/v1/discharges", func(w http.ResponseWriter, r *http.Request) {
		if f.dischargeFails {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"code":0,"message":"ok","data":{"list":[{"chargeKey":"CHG-9","itemBarcode":"B9","title":"Gone","dischargeDate":"2026-08-20"}],"totalCount":1}}`)
	})

	return mux
}

func newTestClient(baseURL string, pageSize int) *Client {
	return NewClient(config.CirculationConfig{
		BaseURL:       baseURL,
		Username:      "reader",
		Password:      "secret",
		PageSize:      pageSize,
		Timeout:       2 * time.Second,
		Retries:       0,
		RetryBackoff:  time.Millisecond,
		RatePerSecond: 0,
	}, zerolog.New(io.Discard))
}

func TestClientListChargesPaginates(t *testing.T) {
	api := &fakeCirculationAPI{t: t, charges: []string{"CHG-1", "CHG-2", "CHG-3", "CHG-4", "CHG-5"}}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	client := newTestClient(srv.URL, 2)

	charges, err := client.ListCharges(context.Background())
	if err != nil {
		t.Fatalf("ListCharges() error = %v", err)
	}
	if len(charges) != 5 {
		t.Fatalf("got %d charges, want 5", len(charges))
	}
	if api.logins.Load() != 1 {
		t.Errorf("login called %d times, want 1", api.logins.Load())
	}
	// 5 charges at page size 2 means 3 pages.
	if got := api.chargeCalls.Load(); got != 3 {
		t.Errorf("charge endpoint hit %d times, want 3", got)
	}

	first := charges[0]
	if first.ChargeID != "CHG-1" || first.VolumeID != "B0" || first.RenewCount != 1 {
		t.Errorf("unexpected first charge: %+v", first)
	}
	if first.DueDate.Format("2006-01-02") != "2026-09-15" {
		t.Errorf("due date = %v", first.DueDate)
	}
}

func TestClientReauthenticatesOnceOn401(t *testing.T) {
	api := &fakeCirculationAPI{t: t, charges: []string{"CHG-1"}, rejectToken: "token-1"}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	client := newTestClient(srv.URL, 10)

	charges, err := client.ListCharges(context.Background())
	if err != nil {
		t.Fatalf("ListCharges() error = %v", err)
	}
	if len(charges) != 1 {
		t.Fatalf("got %d charges, want 1", len(charges))
	}
	// First token is rejected, exactly one re-login recovers.
	if got := api.logins.Load(); got != 2 {
		t.Errorf("login called %d times, want 2", got)
	}
}

func TestClientTerminalAuthFailure(t *testing.T) {
	// Every token is rejected, so the single re-login cannot help.
	api := &fakeCirculationAPI{t: t, charges: []string{"CHG-1"}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/login" {
			api.logins.Add(1)
			fmt.Fprint(w, `{"success":true,"code":0,"message":"ok","data":{"accessToken":"t"}}`)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 10)

	_, err := client.ListCharges(context.Background())
	if !IsAuthError(err) {
		t.Fatalf("expected *AuthError, got %T: %v", err, err)
	}
	if got := api.logins.Load(); got != 2 {
		t.Errorf("login called %d times, want 2 (initial + one retry)", got)
	}
}

func TestClientLoginRejected(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"http 401", http.StatusUnauthorized, ``, ""},
		{"envelope failure", http.StatusOK, `{"success":false,"code":1001,"message":"bad credentials"}`, "bad credentials"},
		{"missing token", http.StatusOK, `{"success":true,"code":0,"message":"ok","data":{}}`, "no access token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			client := newTestClient(srv.URL, 10)
			_, err := client.ListCharges(context.Background())
			if !IsAuthError(err) {
				t.Fatalf("expected *AuthError, got %T: %v", err, err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestClientListDischarges(t *testing.T) {
	api := &fakeCirculationAPI{t: t, charges: []string{"CHG-1"}}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	client := newTestClient(srv.URL, 10)

	discharges, err := client.ListDischarges(context.Background())
	if err != nil {
		t.Fatalf("ListDischarges() error = %v", err)
	}
	if len(discharges) != 1 {
		t.Fatalf("got %d discharges, want 1", len(discharges))
	}
	d := discharges[0]
	if d.ChargeID != "CHG-9" || d.DischargeDate == nil {
		t.Errorf("unexpected discharge: %+v", d)
	}
	if d.DischargeDate.Format("2006-01-02") != "2026-08-20" {
		t.Errorf("discharge date = %v", d.DischargeDate)
	}
}

func TestClientDischargeFailureIsPartial(t *testing.T) {
	api := &fakeCirculationAPI{t: t, charges: []string{"CHG-1"}, dischargeFails: true}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	client := newTestClient(srv.URL, 10)

	_, err := client.ListDischarges(context.Background())
	if !IsPartialData(err) {
		t.Fatalf("expected *PartialDataError, got %T: %v", err, err)
	}
}

func TestParseWireDate(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"2026-08-01", false},
		{"2026-08-01T10:30:00Z", false},
		{"2026-08-01T10:30:00+09:00", false},
		{"01/08/2026", true},
		{"", true},
	}

	for _, tt := range tests {
		_, err := parseWireDate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseWireDate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}
