package user

type Permission string

const (
	// Clocking
	PermissionAttendanceClock   Permission = "attendance.clock"
	PermissionAttendanceViewOwn Permission = "attendance.view_own"
	PermissionAttendanceViewAll Permission = "attendance.view_all"

	// Day aggregation
	PermissionAttendanceProcess Permission = "attendance.process"

	// Evidence and biometrics
	PermissionEvidenceView   Permission = "evidence.view"
	PermissionBiometricEnrol Permission = "biometric.enroll"

	// Configuration
	PermissionShiftManage    Permission = "shift.manage"
	PermissionGeofenceManage Permission = "geofence.manage"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleOwner: {
		// Owner has all permissions
		PermissionAttendanceClock,
		PermissionAttendanceViewOwn,
		PermissionAttendanceViewAll,
		PermissionAttendanceProcess,
		PermissionEvidenceView,
		PermissionBiometricEnrol,
		PermissionShiftManage,
		PermissionGeofenceManage,
	},
	RoleManager: {
		PermissionAttendanceClock,
		PermissionAttendanceViewOwn,
		PermissionAttendanceViewAll,
		PermissionAttendanceProcess,
		PermissionEvidenceView,
		PermissionBiometricEnrol,
		PermissionShiftManage,
	},
	RoleEmployee: {
		PermissionAttendanceClock,
		PermissionAttendanceViewOwn,
		PermissionAttendanceProcess,
	},
	RolePending: {
		// Pending role has no permissions
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}

	return false
}
