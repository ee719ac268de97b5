package models

import "errors"

// ErrTaskCancelled signals a cooperative stop. Workers and steps return it
// (possibly wrapped) when they notice the cancel latch; runners record the
// task as cancelled instead of failed when they see it.
var ErrTaskCancelled = errors.New("task cancelled")
