// Package notify sends household notifications by e-mail through Amazon SES.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"familydose/internal/models"
)

// emailSender is the subset of the SES client used here
type emailSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESNotifier e-mails refill alerts to a household's parent
type SESNotifier struct {
	client    emailSender
	fromEmail string
	fromName  string
	enabled   bool
	log       *zap.Logger
}

// NewSESNotifier creates a notifier. Without a from address the notifier is
// disabled and every send is a logged no-op.
func NewSESNotifier(ctx context.Context, awsRegion, fromEmail, fromName string, logger *zap.Logger) (*SESNotifier, error) {
	if fromEmail == "" {
		logger.Info("refill e-mails disabled: SES_FROM_EMAIL not configured")
		return &SESNotifier{enabled: false, log: logger}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("refill e-mails enabled", zap.String("from", fromEmail), zap.String("region", awsRegion))
	return &SESNotifier{
		client:    sesv2.NewFromConfig(cfg),
		fromEmail: fromEmail,
		fromName:  fromName,
		enabled:   true,
		log:       logger,
	}, nil
}

// IsEnabled returns whether e-mails are actually sent
func (n *SESNotifier) IsEnabled() bool {
	return n.enabled
}

// NotifyLowStock tells the parent which slots need a refill
func (n *SESNotifier) NotifyLowStock(ctx context.Context, parent *models.User, items []models.LowStock) error {
	if len(items) == 0 {
		return nil
	}
	if !n.enabled {
		n.log.Debug("skipping refill e-mail (disabled)", zap.String("connect", parent.Connect), zap.Int("items", len(items)))
		return nil
	}
	if parent.Email == "" {
		n.log.Info("skipping refill e-mail: parent has no address", zap.String("user_id", parent.ID))
		return nil
	}

	subject, text := renderLowStock(parent, items)
	return n.send(ctx, parent.Email, subject, text)
}

func renderLowStock(parent *models.User, items []models.LowStock) (string, string) {
	subject := fmt.Sprintf("Refill needed: %d dispenser slot(s) running low", len(items))
	if len(items) == 1 {
		subject = fmt.Sprintf("Refill needed: %s is running low", items[0].ItemName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nThese dispenser slots are running low:\n\n", parent.Name)
	for _, it := range items {
		fmt.Fprintf(&b, "- Slot %d: %s (%d of %d left)\n", it.Slot, it.ItemName, it.Remain, it.Total)
	}
	b.WriteString("\nRefill them and update the quantity in the app.\n\n---\nThis is an automated message from FamilyDose. Please do not reply.\n")
	return subject, b.String()
}

func (n *SESNotifier) send(ctx context.Context, toEmail, subject, textBody string) error {
	fromAddress := n.fromEmail
	if n.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", n.fromName, n.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := n.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}
	n.log.Info("refill e-mail sent", zap.String("to", toEmail), zap.Stringp("message_id", result.MessageId))
	return nil
}
