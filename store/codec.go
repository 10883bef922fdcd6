package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Codec between records and the map values stored in the remote tree.
// Conversion from remote data is defensive: a record without a usable id is
// rejected so it can never reach the cache.

// TaskToValue flattens a task into the remote map representation.
func TaskToValue(t Task) map[string]any {
	lastModified := t.LastModified
	if lastModified == 0 {
		lastModified = time.Now().UnixMilli()
	}

	subTasks := make([]any, 0, len(t.SubTasks))
	for _, st := range t.SubTasks {
		subTasks = append(subTasks, SubTaskToValue(st))
	}

	return map[string]any{
		"title":          t.Title,
		"description":    t.Description,
		"dueDate":        t.DueDate,
		"dueTime":        t.DueTime,
		"isCompleted":    t.Completed,
		"isImportant":    t.Important,
		"category":       t.Category,
		"reminderType":   t.ReminderType,
		"hasReminder":    t.HasReminder,
		"attachments":    t.Attachments,
		"repeatType":     string(t.RepeatType),
		"isRepeating":    t.Repeating,
		"completionDate": t.CompletionDate,
		"createdAt":      t.CreatedAt,
		"updatedAt":      t.UpdatedAt,
		"lastModified":   lastModified,
		"subTasks":       subTasks,
	}
}

// TaskFromValue reconstructs a task keyed by id from remote data.
// Returns an error if id is empty or data is nil.
func TaskFromValue(id string, data map[string]any) (Task, error) {
	if strings.TrimSpace(id) == "" {
		return Task{}, fmt.Errorf("remote task has empty id")
	}
	if data == nil {
		return Task{}, fmt.Errorf("remote task %s has no data", id)
	}

	t := Task{
		ID:             id,
		Title:          asString(data["title"]),
		Description:    asString(data["description"]),
		DueDate:        asString(data["dueDate"]),
		DueTime:        asString(data["dueTime"]),
		Completed:      asBool(data["isCompleted"]),
		Important:      asBool(data["isImportant"]),
		Category:       asString(data["category"]),
		ReminderType:   asString(data["reminderType"]),
		HasReminder:    asBool(data["hasReminder"]),
		Attachments:    asString(data["attachments"]),
		RepeatType:     RepeatType(asString(data["repeatType"])),
		Repeating:      asBool(data["isRepeating"]),
		CompletionDate: asString(data["completionDate"]),
		CreatedAt:      asString(data["createdAt"]),
		UpdatedAt:      asString(data["updatedAt"]),
		LastModified:   asInt64(data["lastModified"]),
	}
	if t.LastModified == 0 {
		t.LastModified = time.Now().UnixMilli()
	}

	if raw, ok := data["subTasks"].([]any); ok {
		for _, item := range raw {
			stData, ok := item.(map[string]any)
			if !ok {
				continue
			}
			st, err := SubTaskFromValue(stData)
			if err != nil {
				continue // drop malformed subtasks, keep the rest
			}
			t.SubTasks = append(t.SubTasks, st)
		}
	}

	if strings.TrimSpace(t.ID) == "" {
		return Task{}, fmt.Errorf("remote task lost its id during conversion")
	}
	return t, nil
}

// SubTaskToValue flattens a subtask into the remote map representation.
func SubTaskToValue(st SubTask) map[string]any {
	return map[string]any{
		"id":          st.ID,
		"taskId":      st.TaskID,
		"title":       st.Title,
		"isCompleted": st.Completed,
		"createdAt":   st.CreatedAt,
	}
}

// SubTaskFromValue reconstructs a subtask from remote data.
func SubTaskFromValue(data map[string]any) (SubTask, error) {
	id := asString(data["id"])
	if strings.TrimSpace(id) == "" {
		return SubTask{}, fmt.Errorf("remote subtask has empty id")
	}
	return SubTask{
		ID:        id,
		TaskID:    asString(data["taskId"]),
		Title:     asString(data["title"]),
		Completed: asBool(data["isCompleted"]),
		CreatedAt: asString(data["createdAt"]),
	}, nil
}

// CategoryToValue flattens a category into the remote map representation.
func CategoryToValue(c Category) map[string]any {
	return map[string]any{
		"name":      c.Name,
		"color":     c.Color,
		"sortOrder": c.SortOrder,
		"isDefault": c.Default,
		"createdAt": c.CreatedAt,
		"updatedAt": c.UpdatedAt,
	}
}

// CategoryFromValue reconstructs a category keyed by id from remote data.
func CategoryFromValue(id string, data map[string]any) (Category, error) {
	if strings.TrimSpace(id) == "" {
		return Category{}, fmt.Errorf("remote category has empty id")
	}
	if data == nil {
		return Category{}, fmt.Errorf("remote category %s has no data", id)
	}
	return Category{
		ID:        id,
		Name:      asString(data["name"]),
		Color:     asString(data["color"]),
		SortOrder: int(asInt64(data["sortOrder"])),
		Default:   asBool(data["isDefault"]),
		CreatedAt: asString(data["createdAt"]),
		UpdatedAt: asString(data["updatedAt"]),
	}, nil
}

// ShareToValue flattens a sharing record into the remote map representation.
func ShareToValue(s TaskShare) map[string]any {
	users := make([]any, 0, len(s.SharedUsers))
	for _, u := range s.SharedUsers {
		users = append(users, map[string]any{
			"email":      u.Email,
			"name":       u.Name,
			"canEdit":    u.CanEdit,
			"status":     u.Status,
			"invitedAt":  u.InvitedAt,
			"acceptedAt": u.AcceptedAt,
		})
	}
	return map[string]any{
		"id":          s.ID,
		"taskId":      s.TaskID,
		"ownerId":     s.OwnerID,
		"ownerEmail":  s.OwnerEmail,
		"ownerName":   s.OwnerName,
		"sharedUsers": users,
		"isActive":    s.Active,
		"createdAt":   s.CreatedAt,
		"updatedAt":   s.UpdatedAt,
	}
}

// ShareFromValue reconstructs a sharing record from remote data.
func ShareFromValue(data map[string]any) (TaskShare, error) {
	if data == nil {
		return TaskShare{}, fmt.Errorf("sharing record has no data")
	}
	s := TaskShare{
		ID:         asString(data["id"]),
		TaskID:     asString(data["taskId"]),
		OwnerID:    asString(data["ownerId"]),
		OwnerEmail: asString(data["ownerEmail"]),
		OwnerName:  asString(data["ownerName"]),
		Active:     asBool(data["isActive"]),
		CreatedAt:  asString(data["createdAt"]),
		UpdatedAt:  asString(data["updatedAt"]),
	}
	if strings.TrimSpace(s.TaskID) == "" {
		return TaskShare{}, fmt.Errorf("sharing record has empty task id")
	}

	if raw, ok := data["sharedUsers"].([]any); ok {
		for _, item := range raw {
			uData, ok := item.(map[string]any)
			if !ok {
				continue
			}
			email := asString(uData["email"])
			if strings.TrimSpace(email) == "" {
				continue
			}
			s.AddSharedUser(SharedUser{
				Email:      email,
				Name:       asString(uData["name"]),
				CanEdit:    asBool(uData["canEdit"]),
				Status:     asString(uData["status"]),
				InvitedAt:  asString(uData["invitedAt"]),
				AcceptedAt: asString(uData["acceptedAt"]),
			})
		}
	}
	return s, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

// asInt64 tolerates the numeric shapes JSON decoding can produce.
func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}
