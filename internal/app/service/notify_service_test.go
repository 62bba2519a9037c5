package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"polyboard/internal/domain/model"
)

func captureNotification(t *testing.T, send func(n Notifier)) string {
	t.Helper()

	var content string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		content = payload["content"]
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	send(NewNotifier(srv.URL))
	return content
}

func verifiedSolve(fmc, speed *bool) *model.Solve {
	return &model.Solve{
		ID:            42,
		Solver:        model.PublicUser{ID: "u1", Username: "solver"},
		Puzzle:        model.Puzzle{ID: 9, Name: "3x3x3"},
		FmcVerified:   fmc,
		SpeedVerified: speed,
	}
}

func TestNotifyAutoVerificationAccepted(t *testing.T) {
	accepted := true
	content := captureNotification(t, func(n Notifier) {
		n.NotifyAutoVerification(context.Background(), verifiedSolve(&accepted, &accepted))
	})

	if !strings.Contains(content, ":robot:") || !strings.Contains(content, "accepted") {
		t.Errorf("content = %q, want robot + accepted", content)
	}
}

func TestNotifyAutoVerificationNeedsReview(t *testing.T) {
	mc := int32(100)
	solve := verifiedSolve(nil, nil)
	solve.MoveCount = &mc // pending FMC verdict

	content := captureNotification(t, func(n Notifier) {
		n.NotifyAutoVerification(context.Background(), solve)
	})

	if !strings.Contains(content, "needs manual review") {
		t.Errorf("content = %q, want needs manual review", content)
	}
}

func TestNotifyManualVerificationRejected(t *testing.T) {
	rejected := false
	editor := &model.User{ID: "m1", Username: "mod"}

	content := captureNotification(t, func(n Notifier) {
		n.NotifyManualVerification(context.Background(), editor, verifiedSolve(nil, &rejected), model.EventSpeedVerified)
	})

	if !strings.Contains(content, "speed-rejected by mod") {
		t.Errorf("content = %q, want speed-rejected by mod", content)
	}
}

func TestNoopNotifierWithoutURL(t *testing.T) {
	n := NewNotifier("")
	// Must not panic or make network calls.
	n.NotifyAutoVerification(context.Background(), verifiedSolve(nil, nil))
	n.NotifyManualVerification(context.Background(), &model.User{}, verifiedSolve(nil, nil), model.EventFmcVerified)
}
