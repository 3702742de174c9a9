package models

// DashboardStats aggregates training activity for the landing page.
// Program officers see figures scoped to their own trainings.
type DashboardStats struct {
	TotalTrainings     int `json:"total_trainings"`
	UpcomingTrainings  int `json:"upcoming_trainings"`
	CompletedTrainings int `json:"completed_trainings"`
	TotalParticipants  int `json:"total_participants"`
	AttendanceRate     int `json:"attendance_rate"`
	TrainedStaff       int `json:"trained_staff"`
	UntrainedStaff     int `json:"untrained_staff"`
}

// TrainingAnalytics breaks one training down by nomination outcome.
type TrainingAnalytics struct {
	TrainingID     string                     `json:"training_id"`
	TrainingTitle  string                     `json:"training_title"`
	TotalNominated int                        `json:"total_nominated"`
	TotalApproved  int                        `json:"total_approved"`
	TotalAttended  int                        `json:"total_attended"`
	AttendanceRate int                        `json:"attendance_rate"`
	ByInstitution  []InstitutionNominationRow `json:"by_institution"`
}

// InstitutionNominationRow is one institution's share of a training.
type InstitutionNominationRow struct {
	InstitutionID   string `db:"institution_id" json:"institution_id"`
	InstitutionName string `db:"institution_name" json:"institution_name"`
	Nominated       int    `db:"nominated" json:"nominated"`
	Approved        int    `db:"approved" json:"approved"`
	Attended        int    `db:"attended" json:"attended"`
}

// InstitutionReport summarises training coverage of one institution's staff.
type InstitutionReport struct {
	InstitutionID   string       `json:"institution_id"`
	InstitutionName string       `json:"institution_name"`
	TotalStaff      int          `json:"total_staff"`
	TrainedStaff    int          `json:"trained_staff"`
	UntrainedStaff  int          `json:"untrained_staff"`
	ByProgram       []ProgramRow `json:"by_program"`
}

// ProgramRow counts an institution's trainings and participants per program.
type ProgramRow struct {
	Program      string `db:"program" json:"program"`
	Trainings    int    `db:"trainings" json:"trainings"`
	Participants int    `db:"participants" json:"participants"`
}
