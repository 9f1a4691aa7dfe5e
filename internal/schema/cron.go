package schema

// CronJobSummary is a lightweight view of a scheduled job used by the
// schedule tool.
type CronJobSummary struct {
	ID   string
	Name string
	Kind string // "every", "cron", or "at"
}

// CronService is the interface the schedule tool uses to manage jobs.
// Implemented by cron.Service. Defined here to avoid an import cycle.
type CronService interface {
	AddJob(
		name, message, kind string,
		everyMs int64, cronExpr, tz string, atMs int64,
		deliver bool, channel, to string, deleteAfterRun bool,
	) (id string, err error)
	ListJobs() []CronJobSummary
	RemoveJob(id string) bool
}
