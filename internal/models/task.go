package models

import (
	"fmt"
	"time"
)

// TaskStatus represents the current state of a service task
type TaskStatus string

const (
	TaskPending  TaskStatus = "pending"
	TaskApproved TaskStatus = "approved"
	TaskRejected TaskStatus = "rejected"
	TaskAssigned TaskStatus = "assigned"
)

// IsValid returns true if the status is a known value
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskPending, TaskApproved, TaskRejected, TaskAssigned:
		return true
	}
	return false
}

// Urgency represents how quickly a task must be serviced
type Urgency string

const (
	Urgent    Urgency = "urgent"
	NonUrgent Urgency = "non-urgent"
)

// IsValid returns true if the urgency is a known value
func (u Urgency) IsValid() bool {
	return u == Urgent || u == NonUrgent
}

// Task represents a service request to be matched with an engineer
type Task struct {
	ID           string     `json:"id"`
	Trade        string     `json:"trade"`
	Location     string     `json:"location"`
	Budget       float64    `json:"budget"`
	Urgency      Urgency    `json:"urgency"`
	TimeSlot     string     `json:"time_slot,omitempty"`
	Description  string     `json:"description,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	Deadline     time.Time  `json:"deadline"`
	Requirements []string   `json:"requirements,omitempty"`
	Status       TaskStatus `json:"status"`
}

// Validate checks that a task is well formed at construction time
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if t.Trade == "" {
		return fmt.Errorf("task trade is required")
	}
	if t.Budget <= 0 {
		return fmt.Errorf("task budget must be positive, got %v", t.Budget)
	}
	if !t.Urgency.IsValid() {
		return fmt.Errorf("invalid urgency: %q", t.Urgency)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid task status: %q", t.Status)
	}
	return nil
}

// IsUrgent returns true if the task needs priority servicing
func (t *Task) IsUrgent() bool {
	return t.Urgency == Urgent
}

// CreateTaskRequest represents a request to register a new task
type CreateTaskRequest struct {
	Trade        string    `json:"trade"`
	Location     string    `json:"location"`
	Budget       float64   `json:"budget"`
	Urgency      Urgency   `json:"urgency"`
	TimeSlot     string    `json:"time_slot,omitempty"`
	Description  string    `json:"description,omitempty"`
	Deadline     time.Time `json:"deadline"`
	Requirements []string  `json:"requirements,omitempty"`
}
