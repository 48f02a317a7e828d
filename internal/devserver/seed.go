package devserver

import (
	"github.com/aussiebroadwan/examadmin/pkg/authsdk"
)

// Sections the sample platform exposes.
var demoSections = []string{"Dashboard", "Exams", "Questions", "Subscriptions", "Users"}

// DemoUsers returns two operators: an administrator with every permission
// and a proctor with two-factor enabled and limited rights.
func DemoUsers(secret, totpSecret string) []UserSpec {
	admin := authsdk.Role{Name: "admin"}
	for _, section := range demoSections {
		admin.Permissions = append(admin.Permissions, authsdk.PermissionGrant{
			SectionName: section,
			CanCreate:   true,
			CanRead:     true,
			CanUpdate:   true,
			CanDelete:   true,
		})
	}

	proctor := authsdk.Role{
		Name: "proctor",
		Permissions: []authsdk.PermissionGrant{
			{SectionName: "Dashboard", CanRead: true},
			{SectionName: "Exams", CanRead: true, CanUpdate: true},
			{SectionName: "Questions", CanRead: true},
		},
	}

	return []UserSpec{
		{Name: "Admin", Email: "admin@example.com", Secret: secret, Role: admin},
		{
			Name:         "Proctor",
			Email:        "proctor@example.com",
			Secret:       secret,
			TOTPSecret:   totpSecret,
			MobileMasked: "+91*****10",
			Role:         proctor,
		},
	}
}
