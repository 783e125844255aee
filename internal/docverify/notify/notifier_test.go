// internal/docverify/notify/notifier_test.go
package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
)

// TestLogger implements the Logger interface for testing
type TestLogger struct {
	t *testing.T
}

func NewTestLogger(t *testing.T) *TestLogger { return &TestLogger{t: t} }

func (l *TestLogger) Info(msg string, fields map[string]interface{}) {
	l.t.Logf("INFO: %s %v", msg, fields)
}
func (l *TestLogger) Warn(msg string, fields map[string]interface{}) {
	l.t.Logf("WARN: %s %v", msg, fields)
}
func (l *TestLogger) Error(msg string, fields map[string]interface{}) {
	l.t.Logf("ERROR: %s %v", msg, fields)
}
func (l *TestLogger) With(fields map[string]interface{}) Logger { return l }

type fakeEmailSender struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (f *fakeEmailSender) SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{}, nil
}

type fakeSMSPublisher struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSMSPublisher) Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{}, nil
}

func testReview() Review {
	return Review{
		RunID:        "run-9",
		Confidence:   0.42,
		Assessment:   `{"confidence_score": 0.42, "message": "partial match only"}`,
		PlaceOfBirth: "Unknown Clinic, Atlantis",
	}
}

func TestNotifier_EmailAndSMS(t *testing.T) {
	email := &fakeEmailSender{}
	sms := &fakeSMSPublisher{}

	notifier := NewNotifier(Config{
		EmailEnabled: true,
		FromEmail:    "pipeline@example.com",
		Reviewers:    []string{"reviewer1@example.com", "reviewer2@example.com"},
		SMSEnabled:   true,
		PhoneNumbers: []string{"+61400000001", "+61400000002"},
	}, email, sms, NewTestLogger(t))

	errs := notifier.NotifyHumanReview(context.Background(), testReview())

	assert.Empty(t, errs)
	assert.Len(t, email.inputs, 1)
	assert.Equal(t, "pipeline@example.com", *email.inputs[0].Source)
	assert.Len(t, email.inputs[0].Destination.ToAddresses, 2)
	assert.Contains(t, *email.inputs[0].Message.Subject.Data, "run-9")
	assert.Contains(t, *email.inputs[0].Message.Body.Text.Data, "Unknown Clinic, Atlantis")

	assert.Len(t, sms.inputs, 2)
	assert.Contains(t, *sms.inputs[0].Message, "run-9")
	assert.Contains(t, *sms.inputs[0].Message, "0.42")
}

func TestNotifier_DisabledChannelsSkipped(t *testing.T) {
	email := &fakeEmailSender{}
	sms := &fakeSMSPublisher{}

	notifier := NewNotifier(Config{}, email, sms, NewTestLogger(t))

	errs := notifier.NotifyHumanReview(context.Background(), testReview())

	assert.Empty(t, errs)
	assert.Empty(t, email.inputs)
	assert.Empty(t, sms.inputs)
}

func TestNotifier_OneChannelFailureDoesNotBlockOther(t *testing.T) {
	email := &fakeEmailSender{err: errors.New("ses unavailable")}
	sms := &fakeSMSPublisher{}

	notifier := NewNotifier(Config{
		EmailEnabled: true,
		FromEmail:    "pipeline@example.com",
		Reviewers:    []string{"reviewer@example.com"},
		SMSEnabled:   true,
		PhoneNumbers: []string{"+61400000001"},
	}, email, sms, NewTestLogger(t))

	errs := notifier.NotifyHumanReview(context.Background(), testReview())

	assert.Len(t, errs, 1)
	assert.Len(t, sms.inputs, 1, "sms should still be delivered")
}

func TestNotifier_NilClientsSkipped(t *testing.T) {
	notifier := NewNotifier(Config{EmailEnabled: true, SMSEnabled: true}, nil, nil, NewTestLogger(t))

	errs := notifier.NotifyHumanReview(context.Background(), testReview())
	assert.Empty(t, errs)
}
