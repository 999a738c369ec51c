package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeProjectsChanged = "projects.changed"
	EventTypeUserDeleted     = "user.deleted"
)

// Actions carried by ProjectsChangedEvent.
const (
	ActionProjectCreated    = "project_created"
	ActionProjectUpdated    = "project_updated"
	ActionProjectDeleted    = "project_deleted"
	ActionColumnsSelected   = "columns_selected"
	ActionDataIngested      = "data_ingested"
	ActionAssignmentAdded   = "assignment_added"
	ActionAssignmentRemoved = "assignment_removed"
)

// ProjectsChangedEvent is published after a session commits a mutation so
// other sessions can drop their cached view.
type ProjectsChangedEvent struct {
	BaseEvent
	OriginID  string `json:"origin_id"`
	ProjectID int64  `json:"project_id"`
	Action    string `json:"action"`
}

func NewProjectsChangedEvent(originID string, projectID int64, action string) *ProjectsChangedEvent {
	return &ProjectsChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeProjectsChanged,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"origin_id":  originID,
				"project_id": projectID,
				"action":     action,
			},
		},
		OriginID:  originID,
		ProjectID: projectID,
		Action:    action,
	}
}

type UserDeletedEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	DeletedBy string `json:"deleted_by"`
}

func NewUserDeletedEvent(userID, deletedBy string) *UserDeletedEvent {
	return &UserDeletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeUserDeleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":    userID,
				"deleted_by": deletedBy,
			},
		},
		UserID:    userID,
		DeletedBy: deletedBy,
	}
}
