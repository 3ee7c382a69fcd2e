package crm

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tidyops/backend/internal/domain/shared"
)

// ClientStatus represents whether a client is still being served
type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
)

// PipelineStage is a column of the sales pipeline board
type PipelineStage string

const (
	StageLead      PipelineStage = "lead"
	StageContacted PipelineStage = "contacted"
	StageQuoted    PipelineStage = "quoted"
	StageWon       PipelineStage = "won"
	StageLost      PipelineStage = "lost"
)

// IsValid reports whether the stage is a known pipeline column
func (s PipelineStage) IsValid() bool {
	switch s {
	case StageLead, StageContacted, StageQuoted, StageWon, StageLost:
		return true
	}
	return false
}

// Client is a customer of the cleaning company
type Client struct {
	shared.TenantAggregateRoot
	Name            string
	Email           string
	Phone           string
	Address         string
	Status          ClientStatus
	Stage           PipelineStage
	LastServiceDate *time.Time
	Notes           string
}

// NewClient creates an active client at the start of the pipeline
func NewClient(tenantID uuid.UUID, name string) (*Client, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrContextNotReady
	}
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	return &Client{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		Status:              ClientStatusActive,
		Stage:               StageLead,
	}, nil
}

// Update replaces the client's editable details
func (c *Client) Update(name, email, phone, address, notes string) error {
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return err
	}
	email = strings.TrimSpace(email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return shared.NewDomainError("INVALID_EMAIL", "Invalid email format")
		}
	}
	if len(phone) > 50 {
		return shared.NewDomainError("INVALID_PHONE", "Phone cannot exceed 50 characters")
	}
	c.Name = name
	c.Email = email
	c.Phone = strings.TrimSpace(phone)
	c.Address = strings.TrimSpace(address)
	c.Notes = notes
	c.Touch()
	return nil
}

// MoveToStage moves the client to another pipeline column.
// Winning a deal reactivates the client; moving to the current stage is a no-op.
func (c *Client) MoveToStage(stage PipelineStage) error {
	if !stage.IsValid() {
		return shared.NewDomainError("INVALID_STAGE", "Unknown pipeline stage")
	}
	if c.Stage == stage {
		return nil
	}
	c.Stage = stage
	if stage == StageWon {
		c.Status = ClientStatusActive
	}
	c.Touch()
	return nil
}

// Deactivate marks the client as no longer served
func (c *Client) Deactivate() {
	if c.Status == ClientStatusInactive {
		return
	}
	c.Status = ClientStatusInactive
	c.Touch()
}

// Activate marks the client as served again
func (c *Client) Activate() {
	if c.Status == ClientStatusActive {
		return
	}
	c.Status = ClientStatusActive
	c.Touch()
}

// RecordService stores the date of the latest completed job
func (c *Client) RecordService(at time.Time) {
	if c.LastServiceDate != nil && !at.After(*c.LastServiceDate) {
		return
	}
	c.LastServiceDate = &at
	c.Touch()
}

// IsInactiveSince reports whether the client has had no service since the cutoff
func (c *Client) IsInactiveSince(cutoff time.Time) bool {
	return c.LastServiceDate == nil || c.LastServiceDate.Before(cutoff)
}

func validateName(name string) error {
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Client name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Client name cannot exceed 200 characters")
	}
	return nil
}
