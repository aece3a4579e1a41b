// Package ai drafts follow-up emails with an optional language model and
// falls back to a fixed template whenever the model cannot be used.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"mapslead/utils"
)

// Supported tones
const (
	ToneFriendly = "Friendly"
	ToneFormal   = "Formal"
	ToneDirect   = "Direct"
)

var Tones = []string{ToneFriendly, ToneFormal, ToneDirect}

type FollowUpRequest struct {
	LeadName      string `json:"lead_name" validate:"required"`
	BusinessName  string `json:"business_name" validate:"required"`
	PreviousEmail string `json:"previous_email,omitempty"`
	Tone          string `json:"tone" validate:"omitempty,oneof=Friendly Formal Direct"`
}

type Draft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Drafter never fails: any generator problem yields FallbackDraft.
type Drafter struct {
	Generator Generator
	Timeout   time.Duration
	Logger    *logrus.Entry
}

// NewDrafter returns a drafter. gen may be nil, in which case every draft is the fallback.
func NewDrafter(gen Generator, timeout time.Duration, logger *logrus.Entry) *Drafter {
	return &Drafter{Generator: gen, Timeout: timeout, Logger: logger}
}

func (d *Drafter) Draft(ctx context.Context, req FollowUpRequest) Draft {
	if req.Tone == "" {
		req.Tone = ToneFriendly
	}
	if d.Generator == nil {
		return FallbackDraft(req)
	}

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	out, err := d.Generator.Generate(ctx, buildPrompt(req))
	if err != nil {
		utils.LogError("ai_generation_failed", err, map[string]interface{}{
			"business_name": req.BusinessName,
			"tone":          req.Tone,
		})
		return FallbackDraft(req)
	}

	draft, ok := parseDraft(out)
	if !ok {
		d.Logger.Warn("AI response missing subject or body, using fallback draft")
		return FallbackDraft(req)
	}
	return draft
}

// FallbackDraft is the fixed follow-up used when no model output is available.
func FallbackDraft(req FollowUpRequest) Draft {
	return Draft{
		Subject: fmt.Sprintf("Following up on our conversation, %s", req.LeadName),
		Body: fmt.Sprintf("Hi %s,\n\nI wanted to follow up on my previous email regarding %s. "+
			"I believe our services could be valuable to your business.\n\n"+
			"Would you have 15 minutes this week for a quick call?\n\nBest regards",
			req.LeadName, req.BusinessName),
	}
}

func buildPrompt(req FollowUpRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a follow-up email in a %s tone for:\n", req.Tone)
	fmt.Fprintf(&b, "Business: %s\n", req.BusinessName)
	fmt.Fprintf(&b, "Contact: %s\n", req.LeadName)
	fmt.Fprintf(&b, "Tone: %s\n", req.Tone)
	if req.PreviousEmail != "" {
		fmt.Fprintf(&b, "Previous email:\n%s\n", req.PreviousEmail)
	}
	b.WriteString("\nProvide:\n1. Subject line\n2. Email body (2-3 paragraphs)\n\n")
	b.WriteString("Format as:\nSUBJECT: [subject]\nBODY: [body]")
	return b.String()
}

// parseDraft reads a "SUBJECT: ..." line and a "BODY: ..." line; every line
// after BODY belongs to the body.
func parseDraft(out string) (Draft, bool) {
	var d Draft
	var body []string
	inBody := false

	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, "SUBJECT:"):
			d.Subject = strings.TrimSpace(strings.TrimPrefix(line, "SUBJECT:"))
		case strings.HasPrefix(line, "BODY:"):
			body = []string{strings.TrimSpace(strings.TrimPrefix(line, "BODY:"))}
			inBody = true
		case inBody:
			body = append(body, line)
		}
	}

	d.Body = strings.TrimSpace(strings.Join(body, "\n"))
	return d, d.Subject != "" && d.Body != ""
}
