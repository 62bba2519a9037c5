package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"polyboard/internal/domain/model"
)

// Notifier is the side channel for moderation alerts. Implementations must
// never fail the calling operation: delivery problems are logged and dropped.
type Notifier interface {
	NotifyAutoVerification(ctx context.Context, solve *model.Solve)
	NotifyManualVerification(ctx context.Context, editor *model.User, solve *model.Solve, event string)
}

// NewNotifier returns a webhook-backed notifier, or a no-op one when no
// webhook URL is configured.
func NewNotifier(webhookURL string) Notifier {
	if webhookURL == "" {
		return noopNotifier{}
	}
	return &webhookNotifier{
		url:    webhookURL,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type noopNotifier struct{}

func (noopNotifier) NotifyAutoVerification(context.Context, *model.Solve)                        {}
func (noopNotifier) NotifyManualVerification(context.Context, *model.User, *model.Solve, string) {}

type webhookNotifier struct {
	url    string
	client *http.Client
}

func solveMarkdown(s *model.Solve) string {
	return fmt.Sprintf("solve #%d (%s on %s)", s.ID, s.Solver.Username, s.Puzzle.Name)
}

func (n *webhookNotifier) NotifyAutoVerification(ctx context.Context, solve *model.Solve) {
	needsManualReview := solve.PendingReview()
	accepted := boolIs(solve.SpeedVerified, true) || boolIs(solve.FmcVerified, true)
	rejected := boolIs(solve.SpeedVerified, false) || boolIs(solve.FmcVerified, false)

	var emoji, verbed string
	switch {
	case rejected && !needsManualReview:
		emoji, verbed = ":x:", "rejected"
	case accepted && !needsManualReview:
		emoji, verbed = ":ballot_box_with_check:", "accepted"
	default:
		emoji, verbed = ":warning:", "needs manual review"
	}

	n.post(ctx, fmt.Sprintf(":robot: %s %s %s", emoji, solveMarkdown(solve), verbed))
}

func (n *webhookNotifier) NotifyManualVerification(ctx context.Context, editor *model.User, solve *model.Solve, event string) {
	var verbPrefix string
	var status *bool
	switch event {
	case model.EventSpeedVerified:
		verbPrefix, status = "speed-", solve.SpeedVerified
	case model.EventFmcVerified:
		verbPrefix, status = "FMC-", solve.FmcVerified
	default:
		return
	}

	var emoji, verbed string
	switch {
	case status == nil:
		emoji, verbed = ":new_moon_with_face:", "unverified"
	case *status:
		emoji, verbed = ":ballot_box_with_check:", "accepted"
	default:
		emoji, verbed = ":x:", "rejected"
	}

	n.post(ctx, fmt.Sprintf("%s %s %s%s by %s", emoji, solveMarkdown(solve), verbPrefix, verbed, editor.Username))
}

func (n *webhookNotifier) post(ctx context.Context, content string) {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		log.Printf("ERROR: Failed to encode notification payload: %v", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		log.Printf("ERROR: Failed to build notification request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		log.Printf("WARN: Failed to deliver notification: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("WARN: Notification webhook returned status %d", resp.StatusCode)
	}
}

func boolIs(v *bool, want bool) bool {
	return v != nil && *v == want
}
