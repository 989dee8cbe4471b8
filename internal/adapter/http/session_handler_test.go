package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tapstand/kiosk/internal/adapter/logger"
	"github.com/tapstand/kiosk/internal/domain"
	"github.com/tapstand/kiosk/internal/interfaces"
)

type fakeStateService struct {
	saved map[string]interfaces.SessionProjection
}

func newFakeStateService() *fakeStateService {
	return &fakeStateService{saved: make(map[string]interfaces.SessionProjection)}
}

func (f *fakeStateService) Save(ctx context.Context, proj interfaces.SessionProjection) error {
	if err := proj.Validate(); err != nil {
		return err
	}
	f.saved[proj.Token] = proj
	return nil
}

func (f *fakeStateService) Load(ctx context.Context, token string) (*interfaces.SessionProjection, bool, error) {
	proj, ok := f.saved[token]
	if !ok {
		return nil, false, nil
	}
	return &proj, true, nil
}

func (f *fakeStateService) MarkVerified(ctx context.Context, token string, estimatedAge int) error {
	return nil
}

func TestHandleStateSaveAndLoad(t *testing.T) {
	svc := newFakeStateService()
	handler := NewSessionHandler(svc, logger.Noop())

	body := `{"token":"kiosk-5","screen":"cart-review","cart":[{"kind":"kofola","size_ml":300,"quantity":1,"unit_price":"1.40"}],"selection":{}}`
	rec := httptest.NewRecorder()
	handler.HandleState(rec, httptest.NewRequest(http.MethodPost, "/session/state", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d, body %s", rec.Code, rec.Body.String())
	}
	var saveResp SaveStateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &saveResp); err != nil || !saveResp.Success {
		t.Fatalf("save response = %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.HandleState(rec, httptest.NewRequest(http.MethodGet, "/session/state?token=kiosk-5", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("load status = %d", rec.Code)
	}
	var loadResp LoadStateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &loadResp); err != nil {
		t.Fatal(err)
	}
	if !loadResp.Success || loadResp.State == nil {
		t.Fatalf("load response = %s", rec.Body.String())
	}
	if loadResp.State.Screen != domain.ScreenCartReview || len(loadResp.State.Cart) != 1 {
		t.Errorf("loaded state = %+v", loadResp.State)
	}
}

func TestHandleStateErrors(t *testing.T) {
	handler := NewSessionHandler(newFakeStateService(), logger.Noop())

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
	}{
		{name: "unknownToken", method: http.MethodGet, target: "/session/state?token=ghost", wantStatus: http.StatusOK},
		{name: "missingToken", method: http.MethodGet, target: "/session/state", wantStatus: http.StatusBadRequest},
		{name: "malformedBody", method: http.MethodPost, target: "/session/state", body: "{", wantStatus: http.StatusBadRequest},
		{name: "invalidProjection", method: http.MethodPost, target: "/session/state", body: `{"token":"t","screen":"nope"}`, wantStatus: http.StatusBadRequest},
		{name: "badMethod", method: http.MethodDelete, target: "/session/state", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			} else {
				req = httptest.NewRequest(tt.method, tt.target, nil)
			}
			rec := httptest.NewRecorder()
			handler.HandleState(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.name == "unknownToken" {
				var resp LoadStateResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Success {
					t.Errorf("unknown token should load success=false, got %s", rec.Body.String())
				}
			}
		})
	}
}
