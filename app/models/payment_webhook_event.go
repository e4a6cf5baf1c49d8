package models

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentWebhookEvent stores provider webhook payloads with deduplication
// metadata for idempotent processing.
type PaymentWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_payment_webhook_events_provider_event,unique,priority:1;index" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;default:'';index:ux_payment_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Mode            string     `gorm:"type:varchar(10)" json:"mode"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false;index" json:"signature_valid"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// CreateWebhookEventIfNotExists inserts the event unless one with the same
// provider event id is already stored. It reports whether a new row was
// created and returns the stored row either way.
func CreateWebhookEventIfNotExists(db *gorm.DB, event *PaymentWebhookEvent) (bool, *PaymentWebhookEvent, error) {
	res := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if res.Error != nil {
		return false, nil, res.Error
	}
	if res.RowsAffected > 0 {
		return true, event, nil
	}

	var existing PaymentWebhookEvent
	err := db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&existing).Error
	if err != nil {
		return false, nil, err
	}
	return false, &existing, nil
}

// MarkWebhookProcessed stamps the processing outcome on a stored event.
func MarkWebhookProcessed(db *gorm.DB, id uint, processingError string) error {
	now := time.Now()
	return db.Model(&PaymentWebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed_at":     now,
			"processing_error": processingError,
		}).Error
}
