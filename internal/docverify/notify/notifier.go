// internal/docverify/notify/notifier.go

// Package notify escalates documents routed to human review.
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// EmailSender matches the SES client wrapper.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SMSPublisher matches the SNS client wrapper.
type SMSPublisher interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

type Config struct {
	EmailEnabled bool
	FromEmail    string
	Reviewers    []string

	SMSEnabled   bool
	PhoneNumbers []string
}

// Review is the escalation payload handed to notifiers.
type Review struct {
	RunID        string
	Confidence   float64
	Assessment   string
	PlaceOfBirth string
}

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Notifier struct {
	config Config
	email  EmailSender
	sms    SMSPublisher
	logger Logger
}

func NewNotifier(config Config, email EmailSender, sms SMSPublisher, log Logger) *Notifier {
	return &Notifier{
		config: config,
		email:  email,
		sms:    sms,
		logger: log.With(map[string]interface{}{
			"component": "notify",
		}),
	}
}

// NotifyHumanReview alerts the configured reviewers about a document that
// needs manual verification. Delivery is best-effort per channel: one
// failing channel does not block the other, and errors are reported in the
// returned slice rather than aborting.
func (n *Notifier) NotifyHumanReview(ctx context.Context, review Review) []error {
	var errs []error

	if n.config.EmailEnabled && n.email != nil {
		if err := n.sendEmails(ctx, review); err != nil {
			errs = append(errs, err)
		}
	}

	if n.config.SMSEnabled && n.sms != nil {
		if err := n.sendSMS(ctx, review); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

func (n *Notifier) sendEmails(ctx context.Context, review Review) error {
	subject := fmt.Sprintf("Document verification requires review: %s", review.RunID)
	body := n.buildBody(review)

	input := &ses.SendEmailInput{
		Source: aws.String(n.config.FromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: n.config.Reviewers,
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
	}

	if _, err := n.email.SendEmail(ctx, input); err != nil {
		n.logger.Error("review email failed", map[string]interface{}{
			"runId": review.RunID,
			"error": err.Error(),
		})
		return fmt.Errorf("send review email: %w", err)
	}

	n.logger.Info("review email sent", map[string]interface{}{
		"runId":     review.RunID,
		"reviewers": len(n.config.Reviewers),
	})
	return nil
}

func (n *Notifier) sendSMS(ctx context.Context, review Review) error {
	message := fmt.Sprintf("Document %s needs manual verification (confidence %.2f)", review.RunID, review.Confidence)

	for _, number := range n.config.PhoneNumbers {
		input := &sns.PublishInput{
			PhoneNumber: aws.String(number),
			Message:     aws.String(message),
		}
		if _, err := n.sms.Publish(ctx, input); err != nil {
			n.logger.Error("review SMS failed", map[string]interface{}{
				"runId": review.RunID,
				"error": err.Error(),
			})
			return fmt.Errorf("send review sms: %w", err)
		}
	}

	n.logger.Info("review SMS sent", map[string]interface{}{
		"runId":   review.RunID,
		"numbers": len(n.config.PhoneNumbers),
	})
	return nil
}

func (n *Notifier) buildBody(review Review) string {
	return fmt.Sprintf(`A document verification run was routed to human review.

Run ID:          %s
Confidence:      %.2f
Place of birth:  %s

Final assessment:
%s
`, review.RunID, review.Confidence, review.PlaceOfBirth, review.Assessment)
}
