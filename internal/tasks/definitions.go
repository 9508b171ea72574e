package tasks

// DefineTasks registers all available tasks
func DefineTasks() {
	RegisterHandler(PenaltyCheckTask.TaskID(), PenaltyCheckTask.HandleExecution)
	RegisterHandler(SendPaymentNoticeTask.TaskID(), SendPaymentNoticeTask.HandleExecution)
}
