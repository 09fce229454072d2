package models

// TaskRequest describes a task to create in Todoist. It is built per inbound
// message and never persisted.
type TaskRequest struct {
	Content   string `json:"content"`
	ProjectID string `json:"project_id,omitempty"`
	DueDate   string `json:"due_date,omitempty"` // YYYY-MM-DD, empty when unknown
	DueString string `json:"due_string,omitempty"`
	Priority  int    `json:"priority"`
	// RequestID is the idempotency key for the create call. It is derived
	// deterministically from (user id, message id) by the caller, so a retry
	// of the same inbound message cannot create a duplicate task.
	RequestID string `json:"-"`
}

// Task is Todoist's record of a created task.
type Task struct {
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	ProjectID string   `json:"project_id"`
	Priority  int      `json:"priority"`
	Due       *TaskDue `json:"due,omitempty"`
	URL       string   `json:"url"`
}

// TaskDue is the structured due date Todoist attaches to a task.
type TaskDue struct {
	Date      string `json:"date"`
	String    string `json:"string"`
	Recurring bool   `json:"is_recurring"`
}

// Project is one Todoist project. The bot only lists projects as a
// credential probe and never routes tasks by project itself.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
