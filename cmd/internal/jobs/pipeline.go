package jobs

import (
	"bytes"
	"context"
	"fmt"

	"dealintake/cmd/internal/domain/entity"
	"dealintake/cmd/internal/integration/google/driveclient"
	"dealintake/cmd/internal/integration/mailer"
	"dealintake/cmd/internal/integration/slackclient"
	"dealintake/cmd/internal/report"
	"dealintake/cmd/internal/utils"

	"github.com/labstack/gommon/log"
)

type SubmissionStore interface {
	FindByID(id int) (*entity.Submission, error)
	UpdateFlags(id int, updates map[string]any) error
}

// Pipeline runs the post-submission chain: render report, upload, email
// the submitter, notify Slack. It is deliberately decoupled from the
// submission's own transaction; a submission commits whether or not any of
// this succeeds. Stages already marked done on the row are skipped, so a
// retried task does not double-send email.
type Pipeline struct {
	Store    SubmissionStore
	Renderer report.Renderer
	Uploader driveclient.Uploader // nil when Drive is not configured
	Mailer   mailer.Sender        // nil when SMTP is not configured
	Slack    slackclient.Notifier // nil when the webhook is not configured
	Queue    *Queue

	CompanyName string
}

func (p *Pipeline) EnqueueSubmission(id int) {
	p.Queue.Enqueue(Task{
		Name: "process_submission",
		Run: func(ctx context.Context) error {
			return p.process(ctx, id)
		},
	})
}

func (p *Pipeline) process(ctx context.Context, id int) error {
	submission, err := p.Store.FindByID(id)
	if err != nil {
		return fmt.Errorf("load submission %d: %w", id, err)
	}
	if submission == nil {
		// Deleted since enqueue; nothing to retry.
		log.Warnf("submission %d vanished before processing", id)
		return nil
	}

	reportURL := submission.ReportURL
	if !submission.PDFGenerated || reportURL == "" {
		rendered, err := p.Renderer.Render(submission)
		if err != nil {
			return fmt.Errorf("render report for submission %d: %w", id, err)
		}

		if p.Uploader != nil {
			reportURL, err = p.Uploader.Upload(ctx, p.Renderer.FileName(submission), "text/html", bytes.NewReader(rendered))
			if err != nil {
				return fmt.Errorf("upload report for submission %d: %w", id, err)
			}
		}

		updates := map[string]any{
			"pdf_generated": true,
			"report_url":    reportURL,
			"updated_at":    utils.NowUTC(),
		}
		if err := p.Store.UpdateFlags(id, updates); err != nil {
			return fmt.Errorf("flag report for submission %d: %w", id, err)
		}
	}

	if !submission.EmailSent && p.Mailer != nil {
		if err := p.sendConfirmation(submission); err != nil {
			return fmt.Errorf("email for submission %d: %w", id, err)
		}
		err := p.Store.UpdateFlags(id, map[string]any{"email_sent": true, "updated_at": utils.NowUTC()})
		if err != nil {
			return fmt.Errorf("flag email for submission %d: %w", id, err)
		}
	}

	if !submission.IsProcessed {
		if p.Slack != nil {
			if err := p.notifySlack(ctx, submission, reportURL); err != nil {
				return fmt.Errorf("slack for submission %d: %w", id, err)
			}
		}
		err := p.Store.UpdateFlags(id, map[string]any{"is_processed": true, "updated_at": utils.NowUTC()})
		if err != nil {
			return fmt.Errorf("flag processed for submission %d: %w", id, err)
		}
	}

	log.Infof("submission %d processed", id)
	return nil
}

func (p *Pipeline) sendConfirmation(submission *entity.Submission) error {
	subject := fmt.Sprintf("We received your %s questionnaire", submission.FormType)
	body := fmt.Sprintf(
		`<p>Hi %s,</p>
<p>Thanks for submitting your %s questionnaire to %s. Our team will review
it and follow up by email. If you booked a review call, a calendar invite
with the meeting link will arrive separately.</p>
<p>— %s</p>`,
		submission.FullName, submission.FormType, p.CompanyName, p.CompanyName,
	)
	return p.Mailer.Send(submission.Email, subject, body)
}

func (p *Pipeline) notifySlack(ctx context.Context, submission *entity.Submission, reportURL string) error {
	summary := fmt.Sprintf("*%s* submitted a %s questionnaire\n>Email: %s\n>Purchase Price: %s\n>Revenue: %s",
		submission.FullName,
		submission.FormType,
		submission.Email,
		report.Currency(submission.PurchasePrice),
		report.Currency(submission.Revenue),
	)
	if reportURL != "" {
		summary += fmt.Sprintf("\n><%s|View report>", reportURL)
	}

	return p.Slack.Notify(ctx, &slackclient.Message{
		Text: fmt.Sprintf("New %s submission from %s", submission.FormType, submission.FullName),
		Blocks: []slackclient.Block{
			slackclient.HeaderBlock(fmt.Sprintf("New %s Submission", submission.FormType)),
			slackclient.SectionBlock(summary),
		},
	})
}
