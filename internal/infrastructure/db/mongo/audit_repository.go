package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/admin-backend/internal/core/domain"
)

const auditCollection = "audit_log"

// AuditRepository persists security events to the audit_log collection.
type AuditRepository struct {
	db *mongo.Database
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) InsertEvent(ctx context.Context, event *domain.AuditEvent) error {
	doc := bson.M{
		"action":       event.Action,
		"timestamp":    event.Timestamp.UTC(),
		"processed_at": time.Now().UTC(),
	}
	if event.IdentityID != "" {
		doc["identity_id"] = event.IdentityID
	}
	if event.Subject != "" {
		doc["subject"] = event.Subject
	}
	if event.RemoteIP != "" {
		doc["remote_ip"] = event.RemoteIP
	}

	_, err := r.db.Collection(auditCollection).InsertOne(ctx, doc)
	return err
}
