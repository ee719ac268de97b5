package models

// Wire message types pushed to websocket observers.
const (
	WireTypeSnapshot = "snapshot"
	WireTypeUpdate   = "update"
	WireTypeDelete   = "delete"
)

// WireMessage is a single frame sent to an observer. Exactly one of Tasks,
// Task, or TaskID is populated depending on Type.
type WireMessage struct {
	Type   string `json:"type"`
	Tasks  []Task `json:"tasks,omitempty"`   // Populated for snapshot frames.
	Task   *Task  `json:"task,omitempty"`    // Populated for update frames.
	TaskID string `json:"task_id,omitempty"` // Populated for delete frames.
}

func NewSnapshotMessage(tasks []Task) WireMessage {
	return WireMessage{Type: WireTypeSnapshot, Tasks: tasks}
}

func NewUpdateMessage(task Task) WireMessage {
	return WireMessage{Type: WireTypeUpdate, Task: &task}
}

func NewDeleteMessage(taskID string) WireMessage {
	return WireMessage{Type: WireTypeDelete, TaskID: taskID}
}

// ObserverAction is a message an observer sends back over the websocket.
type ObserverAction struct {
	Action string `json:"action"`
	TaskID string `json:"task_id"`
}

const ObserverActionCancel = "cancel"
