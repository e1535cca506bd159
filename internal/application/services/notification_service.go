package services

import (
	"context"
	"fmt"
	"os"

	"github.com/visionwell/vision-screening/backend/internal/domain/entities"
	"github.com/visionwell/vision-screening/backend/internal/infrastructure/notifications"
)

// NotificationService sends the delivery notice to the school contact once a
// screening workflow completes. Sending is best-effort; the caller ignores
// failures.
type NotificationService struct {
	whatsappSender *notifications.WhatsAppCloudSender

	// deliveryTemplate, when set, switches the notice from free text to an
	// approved WhatsApp template of that name.
	deliveryTemplate string
}

// NewNotificationService creates a new notification service
func NewNotificationService() (*NotificationService, error) {
	whatsappSender, err := notifications.NewWhatsAppCloudSender()
	if err != nil {
		return nil, fmt.Errorf("failed to create WhatsApp sender: %w", err)
	}

	return &NotificationService{
		whatsappSender:   whatsappSender,
		deliveryTemplate: os.Getenv("WHATSAPP_DELIVERY_TEMPLATE"),
	}, nil
}

// SendDeliveryNotice tells the school contact that a student's glasses are
// on the way (or that the screening finished without a prescription).
func (n *NotificationService) SendDeliveryNotice(ctx context.Context, session *entities.ScreeningSession) error {
	delivery := session.StepData.Delivery
	if delivery == nil || delivery.ContactPhone == "" {
		return nil
	}

	frame := ""
	needsGlasses := false
	if d := session.StepData.Diagnosis; d != nil {
		needsGlasses = d.NeedsGlasses
	}
	if g := session.StepData.Glasses; g != nil {
		frame = g.FrameCode
	}

	if n.deliveryTemplate != "" {
		params := []string{delivery.SchoolContact, frame, string(delivery.Method)}
		_, err := n.whatsappSender.SendTemplate(delivery.ContactPhone, n.deliveryTemplate, "en_US", params)
		return err
	}

	body := "Vision screening completed."
	if needsGlasses {
		if frame != "" {
			frame = fmt.Sprintf(" (frame %s)", frame)
		}
		body = fmt.Sprintf("Vision screening completed. Glasses%s will be delivered via %s.", frame, delivery.Method)
	}

	_, err := n.whatsappSender.SendText(delivery.ContactPhone, body)
	return err
}
