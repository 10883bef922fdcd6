package store

import "strings"

// Remote tree node names.
const (
	UsersNode       = "users"
	TasksNode       = "tasks"
	CategoriesNode  = "categories"
	SharedTasksNode = "shared_tasks"
)

// SanitizeEmail rewrites an email address into a form usable as a tree key.
func SanitizeEmail(email string) string {
	email = strings.ReplaceAll(email, ".", "_")
	return strings.ReplaceAll(email, "@", "_at_")
}

// UserTasksPath is the collection node holding all tasks of an account.
func UserTasksPath(email string) string {
	return UsersNode + "/" + SanitizeEmail(email) + "/" + TasksNode
}

// TaskPath is the node of a single task under an account.
func TaskPath(email, taskID string) string {
	return UserTasksPath(email) + "/" + taskID
}

// UserCategoriesPath is the collection node holding an account's categories.
func UserCategoriesPath(email string) string {
	return UsersNode + "/" + SanitizeEmail(email) + "/" + CategoriesNode
}

// CategoryPath is the node of a single category under an account.
func CategoryPath(email, categoryID string) string {
	return UserCategoriesPath(email) + "/" + categoryID
}

// SharePath is the node of a task's sharing record. Sharing records live
// outside any account namespace so every participant can resolve them.
func SharePath(taskID string) string {
	return SharedTasksNode + "/" + taskID
}
