package consts

var ValidActions = map[ActionName]struct{}{
	ActionRead:    {},
	ActionWrite:   {},
	ActionDelete:  {},
	ActionExecute: {},
	ActionManage:  {},
}

var ValidStatuses = map[StatusType]struct{}{
	StatusDeleted:  {},
	StatusDisabled: {},
	StatusEnabled:  {},
}

var ValidCourseRoles = map[CourseRoleName]struct{}{
	CourseRoleStudent:    {},
	CourseRoleTutor:      {},
	CourseRoleLecturer:   {},
	CourseRoleMaintainer: {},
	CourseRoleOwner:      {},
}

var ValidTaskTypes = map[TaskType]struct{}{
	TaskTypeProvisionGitlab:  {},
	TaskTypeRunTestExecution: {},
	TaskTypeCollectResult:    {},
	TaskTypeArchiveCourse:    {},
}

var ValidTaskStates = map[TaskState]struct{}{
	TaskStatePending:   {},
	TaskStateRunning:   {},
	TaskStateCompleted: {},
	TaskStateFailed:    {},
	TaskStateCancelled: {},
}

var ValidResultStatuses = map[ResultStatus]struct{}{
	ResultPending: {},
	ResultRunning: {},
	ResultPassed:  {},
	ResultFailed:  {},
	ResultError:   {},
	ResultTimeout: {},
}

var ValidGradeStatuses = map[GradeStatus]struct{}{
	GradeStatusDraft:     {},
	GradeStatusFinal:     {},
	GradeStatusCorrected: {},
}

var ValidMessageActions = map[MessageAction]struct{}{
	MessageActionCreated: {},
	MessageActionUpdated: {},
	MessageActionDeleted: {},
}

var ValidAuditLogStates = map[AuditLogState]struct{}{
	AuditLogStateSuccess: {},
	AuditLogStateFailed:  {},
	AuditLogStateWarning: {},
}

var ValidAuthProviderKinds = map[AuthProviderKind]struct{}{
	AuthProviderPassword: {},
	AuthProviderAPIToken: {},
	AuthProviderSession:  {},
	AuthProviderSSO:      {},
}
