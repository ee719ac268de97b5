package storage

import (
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func tempFile() string {
	f, err := os.CreateTemp("", "medley-storage-*")
	if err != nil {
		panic(err)
	}
	if err := f.Close(); err != nil {
		panic(err)
	}
	if err := os.Remove(f.Name()); err != nil {
		panic(err)
	}
	return f.Name()
}

func TestCRUDTasks(t *testing.T) {
	path := tempFile()
	db, err := New(path, 200)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)

	task := Task{
		ID:            "task_1",
		Name:          "Test Task",
		Type:          "transcribe",
		Status:        "pending",
		Progress:      0,
		Message:       "Queued",
		Error:         "",
		Result:        "",
		RequestParams: `{"audio_path":"/a.mp3"}`,
		CreatedAt:     0,
		Cancelled:     false,
	}

	err = db.InsertTask(db, &task)
	if err != nil {
		t.Fatal(err)
	}

	err = db.InsertTask(db, &task)
	if !errors.Is(err, ErrEntityExists) {
		t.Errorf("expected ErrEntityExists on duplicate insert; got %v", err)
	}

	tasks, err := db.ListTasks(db, 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	if len(tasks) != 1 {
		t.Errorf("expected 1 element in list found %d", len(tasks))
	}

	if diff := cmp.Diff(task, tasks[0]); diff != "" {
		t.Errorf("unexpected map values (-want +got):\n%s", diff)
	}

	fetchedTask, err := db.GetTask(db, task.ID)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(task, fetchedTask); diff != "" {
		t.Errorf("unexpected map values (-want +got):\n%s", diff)
	}

	task.Status = "running"
	task.Progress = 50
	task.Message = "Halfway there"

	err = db.UpdateTask(db, task.ID, UpdatableTaskFields{
		Status:   &task.Status,
		Progress: &task.Progress,
		Message:  &task.Message,
	})
	if err != nil {
		t.Fatal(err)
	}

	fetchedTask, err = db.GetTask(db, task.ID)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(task, fetchedTask); diff != "" {
		t.Errorf("unexpected map values (-want +got):\n%s", diff)
	}

	count, err := db.GetTaskCount(db)
	if err != nil {
		t.Fatal(err)
	}

	if count != 1 {
		t.Errorf("expected 1 task; found %d", count)
	}

	err = db.DeleteTask(db, task.ID)
	if err != nil {
		t.Fatal(err)
	}

	err = db.DeleteTask(db, task.ID)
	if !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("expected ErrEntityNotFound on second delete; got %v", err)
	}

	_, err = db.GetTask(db, task.ID)
	if !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("expected ErrEntityNotFound after delete; got %v", err)
	}

	err = db.UpdateTask(db, "nonexistent", UpdatableTaskFields{Status: &task.Status})
	if !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("expected ErrEntityNotFound for unknown update; got %v", err)
	}
}

func TestDeleteAllTasks(t *testing.T) {
	path := tempFile()
	db, err := New(path, 200)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)

	for _, id := range []string{"a", "b", "c"} {
		err := db.InsertTask(db, &Task{ID: id, Status: "pending"})
		if err != nil {
			t.Fatal(err)
		}
	}

	removed, err := db.DeleteAllTasks(db)
	if err != nil {
		t.Fatal(err)
	}

	if removed != 3 {
		t.Errorf("expected 3 removed; got %d", removed)
	}

	tasks, err := db.ListTasks(db, 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	if len(tasks) != 0 {
		t.Errorf("expected empty list; found %d", len(tasks))
	}
}
