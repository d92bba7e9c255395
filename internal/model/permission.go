package model

// Permission represents a string code for a specific admin action.
type Permission string

const (
	PermissionSubjectsRead  Permission = "subjects:read"
	PermissionSubjectsWrite Permission = "subjects:write"

	PermissionQuestionsRead  Permission = "questions:read"
	PermissionQuestionsWrite Permission = "questions:write"
	// PermissionQuestionsVerify allows approving questions for use in generated papers.
	PermissionQuestionsVerify Permission = "questions:verify"

	PermissionStudentsRead         Permission = "students:read"
	PermissionStudentsWrite        Permission = "students:write"
	PermissionStudentsResetSession Permission = "students:reset_session"

	PermissionAttemptsRead Permission = "attempts:read"
	// PermissionAttemptsWrite allows force-completing a student's attempt.
	PermissionAttemptsWrite Permission = "attempts:write"
	PermissionReportsRead   Permission = "reports:read"

	PermissionAdminsManage Permission = "admins:manage"
)

// AllPermissions is a slice of all available permissions, seeded by migrations.
var AllPermissions = []Permission{
	PermissionSubjectsRead,
	PermissionSubjectsWrite,
	PermissionQuestionsRead,
	PermissionQuestionsWrite,
	PermissionQuestionsVerify,
	PermissionStudentsRead,
	PermissionStudentsWrite,
	PermissionStudentsResetSession,
	PermissionAttemptsRead,
	PermissionAttemptsWrite,
	PermissionReportsRead,
	PermissionAdminsManage,
}
