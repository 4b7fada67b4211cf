package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuongbtq/repair-tracker/internal/domain"
)

// User is a row of the users table
type User struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// ToDomain drops the password hash
func (u User) ToDomain() domain.User {
	return domain.User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// RepairJob is a row of the repair_jobs table
type RepairJob struct {
	ID               int64      `db:"id"`
	UserID           int64      `db:"user_id"`
	CustomerName     string     `db:"customer_name"`
	DeviceType       string     `db:"device_type"`
	DeviceModel      string     `db:"device_model"`
	IssueDescription string     `db:"issue_description"`
	Status           string     `db:"status"`
	Priority         string     `db:"priority"`
	EstimatedCost    *float64   `db:"estimated_cost"`
	ActualCost       *float64   `db:"actual_cost"`
	Notes            *string    `db:"notes"`
	Images           StringList `db:"images"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// ToDomain converts the row into its API representation
func (r RepairJob) ToDomain() domain.RepairJob {
	images := []string(r.Images)
	if images == nil {
		images = []string{}
	}
	return domain.RepairJob{
		ID:               r.ID,
		CustomerName:     r.CustomerName,
		DeviceType:       r.DeviceType,
		DeviceModel:      r.DeviceModel,
		IssueDescription: r.IssueDescription,
		Status:           domain.Status(r.Status),
		Priority:         domain.Priority(r.Priority),
		EstimatedCost:    r.EstimatedCost,
		ActualCost:       r.ActualCost,
		Notes:            r.Notes,
		Images:           images,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// FromDomain copies the editable fields of job into the row
func (r *RepairJob) FromDomain(job domain.RepairJob) {
	r.CustomerName = job.CustomerName
	r.DeviceType = job.DeviceType
	r.DeviceModel = job.DeviceModel
	r.IssueDescription = job.IssueDescription
	r.Status = string(job.Status)
	r.Priority = string(job.Priority)
	r.EstimatedCost = job.EstimatedCost
	r.ActualCost = job.ActualCost
	r.Notes = job.Notes
	r.Images = StringList(job.Images)
}

// StringList is stored as a JSONB array
type StringList []string

// Value implements driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// Scan implements sql.Scanner
func (l *StringList) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for StringList: %T", src)
	}

	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("failed to decode StringList: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}
