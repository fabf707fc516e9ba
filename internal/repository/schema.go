// Schema init helpers: create only missing tables, never drop or
// overwrite. Escalation idempotency and pending-dispute uniqueness are
// enforced as real SQL constraints in addition to the services'
// check-then-insert logic, so concurrent writers cannot both succeed.
package repository

import (
	"database/sql"
	"log"
)

// InitializeSchema ensures every table this module needs exists. It never
// drops or recreates a table.
func InitializeSchema(db *sql.DB) error {
	statements := []struct {
		name string
		ddl  string
	}{
		{"departments", ddlDepartments},
		{"officers", ddlOfficers},
		{"complaints", ddlComplaints},
		{"categories", ddlCategories},
		{"sla_rules", ddlSLARules},
		{"resolution_proofs", ddlResolutionProofs},
		{"complaint_attachments", ddlComplaintAttachments},
		{"citizen_signoffs", ddlCitizenSignoffs},
		{"escalation_events", ddlEscalationEvents},
		{"audit_logs", ddlAuditLogs},
		{"notifications", ddlNotifications},
		{"pilot_metrics_events", ddlPilotMetricsEvents},
	}
	for _, s := range statements {
		if _, err := db.Exec(s.ddl); err != nil {
			return err
		}
		log.Printf("[SCHEMA] ensured table %s", s.name)
	}
	return nil
}

const ddlDepartments = `
CREATE TABLE IF NOT EXISTS departments (
    department_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    name VARCHAR(255) NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    is_default BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`

const ddlOfficers = `
CREATE TABLE IF NOT EXISTS officers (
    officer_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    department_id BIGINT NOT NULL,
    name VARCHAR(255) NOT NULL,
    role VARCHAR(32) NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_department_role (department_id, role),
    FOREIGN KEY (department_id) REFERENCES departments(department_id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`

const ddlCategories = `
CREATE TABLE IF NOT EXISTS categories (
    category_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    name VARCHAR(255) UNIQUE NOT NULL,
    description TEXT NULL,
    keywords TEXT NULL COMMENT 'JSON array',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`

const ddlSLARules = `
CREATE TABLE IF NOT EXISTS sla_rules (
    rule_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    category_id BIGINT UNIQUE NOT NULL,
    sla_days INT NOT NULL,
    base_priority ENUM('LOW','MEDIUM','HIGH','CRITICAL') NOT NULL,
    department_id BIGINT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (category_id) REFERENCES categories(category_id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`

const ddlComplaints = `
CREATE TABLE IF NOT EXISTS complaints (
    complaint_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    title VARCHAR(500) NOT NULL,
    description TEXT NOT NULL,
    location VARCHAR(500) NULL,
    citizen_id BIGINT NOT NULL,
    department_id BIGINT NULL,
    staff_id BIGINT NULL,
    category_id BIGINT NULL,
    priority ENUM('LOW','MEDIUM','HIGH','CRITICAL') NOT NULL DEFAULT 'MEDIUM',
    status ENUM('FILED','IN_PROGRESS','RESOLVED','CLOSED','CANCELLED') NOT NULL DEFAULT 'FILED',
    escalation_level TINYINT NOT NULL DEFAULT 0,
    sla_deadline TIMESTAMP NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    started_at TIMESTAMP NULL,
    resolved_at TIMESTAMP NULL,
    closed_at TIMESTAMP NULL,
    needs_manual_routing BOOLEAN NOT NULL DEFAULT FALSE,
    ai_confidence DECIMAL(3,2) NOT NULL DEFAULT 1.00,
    citizen_satisfaction TINYINT NULL,
    INDEX idx_status_sla (status, sla_deadline),
    INDEX idx_citizen (citizen_id),
    INDEX idx_staff (staff_id),
    INDEX idx_department (department_id),
    INDEX idx_escalation_level (escalation_level)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`

const ddlResolutionProofs = `
CREATE TABLE IF NOT EXISTS resolution_proofs (
    proof_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    complaint_id BIGINT NOT NULL,
    staff_id BIGINT NOT NULL,
    image_reference VARCHAR(1000) NOT NULL,
    latitude DOUBLE NOT NULL,
    longitude DOUBLE NOT NULL,
    captured_at TIMESTAMP NOT NULL,
    remarks TEXT NULL,
    is_verified BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_complaint (complaint_id),
    FOREIGN KEY (complaint_id) REFERENCES complaints(complaint_id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`

// complaint_attachments holds citizen-submitted evidence captured at
// filing time, distinct from resolution_proofs (staff-submitted at
// resolution time). evidence_hash is computed by internal/evidence.Hash.
const ddlComplaintAttachments = `
CREATE TABLE IF NOT EXISTS complaint_attachments (
    attachment_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    complaint_id BIGINT NOT NULL,
    file_name VARCHAR(500) NOT NULL,
    file_path VARCHAR(1000) NOT NULL,
    evidence_hash CHAR(64) NOT NULL,
    latitude DOUBLE NULL,
    longitude DOUBLE NULL,
    captured_at TIMESTAMP NULL,
    is_public BOOLEAN NOT NULL DEFAULT FALSE,
    uploaded_by BIGINT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_complaint (complaint_id),
    FOREIGN KEY (complaint_id) REFERENCES complaints(complaint_id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`

// is_pending_dispute is a stored generated column used to enforce
// at-most-one-pending-dispute-per-complaint via a unique index, since
// MySQL has no native partial-unique index. It is NULL for every
// non-pending row and TRUE only while a dispute is awaiting review, so
// the unique index (which never treats two NULLs as a collision) only
// ever fires on a second concurrent pending dispute for the same
// complaint, leaving "many signoffs per complaint" unconstrained.
const ddlCitizenSignoffs = `
CREATE TABLE IF NOT EXISTS citizen_signoffs (
    signoff_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    complaint_id BIGINT NOT NULL,
    citizen_id BIGINT NOT NULL,
    is_accepted BOOLEAN NOT NULL,
    rating TINYINT NULL,
    feedback TEXT NULL,
    dispute_reason TEXT NULL,
    dispute_image_reference VARCHAR(1000) NULL,
    signed_off_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    dispute_approved BOOLEAN NULL,
    dispute_approved_by BIGINT NULL,
    dispute_reviewed_at TIMESTAMP NULL,
    dispute_rejection_reason TEXT NULL,
    is_pending_dispute BOOLEAN AS (CASE WHEN is_accepted = FALSE AND dispute_approved IS NULL THEN TRUE ELSE NULL END) STORED,
    UNIQUE KEY uq_pending_dispute (complaint_id, is_pending_dispute),
    INDEX idx_complaint (complaint_id),
    FOREIGN KEY (complaint_id) REFERENCES complaints(complaint_id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`

const ddlEscalationEvents = `
CREATE TABLE IF NOT EXISTS escalation_events (
    event_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    complaint_id BIGINT NOT NULL,
    previous_level TINYINT NOT NULL,
    escalation_level TINYINT NOT NULL,
    escalated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    escalated_to_role VARCHAR(32) NOT NULL,
    reason VARCHAR(500) NOT NULL,
    days_overdue INT NOT NULL,
    sla_deadline_snapshot TIMESTAMP NOT NULL,
    is_automated BOOLEAN NOT NULL DEFAULT TRUE,
    UNIQUE KEY uq_complaint_level (complaint_id, escalation_level),
    INDEX idx_complaint (complaint_id),
    FOREIGN KEY (complaint_id) REFERENCES complaints(complaint_id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`

const ddlAuditLogs = `
CREATE TABLE IF NOT EXISTS audit_logs (
    audit_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    entity_type VARCHAR(32) NOT NULL,
    entity_id BIGINT NOT NULL,
    action VARCHAR(32) NOT NULL,
    old_value TEXT NULL,
    new_value TEXT NULL,
    actor_type VARCHAR(16) NOT NULL,
    actor_id BIGINT NULL,
    reason VARCHAR(500) NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_entity (entity_type, entity_id, created_at),
    INDEX idx_action (action),
    INDEX idx_actor (actor_type, actor_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`

const ddlNotifications = `
CREATE TABLE IF NOT EXISTS notifications (
    notification_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    user_id BIGINT NOT NULL,
    type VARCHAR(64) NOT NULL,
    title VARCHAR(255) NOT NULL,
    message TEXT NOT NULL,
    complaint_id BIGINT NULL,
    link VARCHAR(500) NULL,
    is_read BOOLEAN NOT NULL DEFAULT FALSE,
    read_at TIMESTAMP NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_user_read (user_id, is_read),
    INDEX idx_user_created (user_id, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`

const ddlPilotMetricsEvents = `
CREATE TABLE IF NOT EXISTS pilot_metrics_events (
    event_id BIGINT PRIMARY KEY AUTO_INCREMENT,
    event_type VARCHAR(64) NOT NULL,
    complaint_id BIGINT NULL,
    user_id BIGINT NULL,
    duration_ms BIGINT NULL,
    metadata TEXT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_event_type (event_type, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`
