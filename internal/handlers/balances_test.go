package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stayreal/companion/internal/balances"
	"github.com/stayreal/companion/internal/models"
)

type stubBalances struct {
	settings    models.BalancesSettings
	downloadErr error
	files       []string
}

func (s *stubBalances) Settings(context.Context) (models.BalancesSettings, error) {
	return s.settings, nil
}

func (s *stubBalances) SaveSettings(_ context.Context, settings models.BalancesSettings) error {
	s.settings = settings
	return nil
}

func (s *stubBalances) Download(context.Context) ([]string, error) {
	if s.downloadErr != nil {
		return nil, s.downloadErr
	}
	return s.files, nil
}

func (s *stubBalances) List(context.Context) ([]string, error) { return nil, nil }

func TestBalancesSettings(t *testing.T) {
	svc := &stubBalances{}
	mux := newTestMux(Dependencies{Balances: svc})

	rec := serve(mux, http.MethodPut, "/api/v1/balances/settings", `{"folder":"/b","peopleIds":["p1"]}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}
	if svc.settings.Folder != "/b" || len(svc.settings.PeopleIDs) != 1 {
		t.Fatalf("unexpected settings %+v", svc.settings)
	}

	rec = serve(mux, http.MethodPut, "/api/v1/balances/settings", `{"folder":"/b","peopleIds":[""]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected blank person id rejected, got %d", rec.Code)
	}

	rec = serve(mux, http.MethodGet, "/api/v1/balances/settings", "")
	var got models.BalancesSettings
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil || got.Folder != "/b" {
		t.Fatalf("unexpected settings %+v %v", got, err)
	}
}

func TestBalancesDownloadAndList(t *testing.T) {
	svc := &stubBalances{files: []string{"p1_1.json"}}
	mux := newTestMux(Dependencies{Balances: svc})

	rec := serve(mux, http.MethodPost, "/api/v1/balances/download", "")
	var resp map[string][]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil || len(resp["files"]) != 1 {
		t.Fatalf("unexpected download response %v %v", resp, err)
	}

	svc.downloadErr = balances.ErrNoFolder
	rec = serve(mux, http.MethodPost, "/api/v1/balances/download", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}

	rec = serve(mux, http.MethodGet, "/api/v1/balances", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "[]\n" {
		t.Fatalf("expected empty list, got %d %q", rec.Code, rec.Body.String())
	}
}
