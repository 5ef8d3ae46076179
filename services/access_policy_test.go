package services

import (
	"testing"

	"OrgVerify/models"

	"github.com/stretchr/testify/assert"
)

func actor(kind models.ActorKind, id uint, role string, companyID *uint) *models.Actor {
	return &models.Actor{Ref: models.ActorRef{Kind: kind, ID: id}, Role: role, CompanyID: companyID}
}

func TestClassify(t *testing.T) {
	companyA, companyB := uintPtr(1), uintPtr(2)

	plainUser := actor(models.KindEndUser, 1, models.RoleUser, nil)
	employeeA := actor(models.KindEndUser, 2, models.RoleEmployee, companyA)
	employeeA2 := actor(models.KindEndUser, 3, models.RoleEmployee, companyA)
	employeeB := actor(models.KindEndUser, 4, models.RoleEmployee, companyB)
	admin := actor(models.KindSupportAdmin, 1, models.RoleAdmin, nil)
	superAdmin := actor(models.KindSupportAdmin, 2, models.RoleSuperAdmin, nil)
	notifyOnly := actor(models.KindEmployee, 9, models.RoleEmployee, companyA)

	tests := []struct {
		name      string
		sender    *models.Actor
		recipient *models.Actor
		allow     bool
		class     models.RoutingClass
		reason    string
	}{
		{"user to admin", employeeA, admin, true, models.RoutingSupport, ""},
		{"admin to user", admin, employeeB, true, models.RoutingSupport, ""},
		{"super admin to user", superAdmin, plainUser, true, models.RoutingSupport, ""},
		{"admin to admin", admin, superAdmin, true, models.RoutingSupport, ""},
		{"same company", employeeA, employeeA2, true, models.RoutingDirect, ""},
		{"cross company", employeeA, employeeB, false, "", ReasonCrossCompany},
		{"unscoped user to employee", plainUser, employeeB, true, models.RoutingDirect, ""},
		{"self", employeeA, employeeA, false, "", ReasonSelfMessage},
		{"employee record cannot chat", notifyOnly, employeeA, false, "", ReasonUnsupportedActor},
		{"nil recipient", plainUser, nil, false, "", ReasonUnsupportedActor},
		{"admin kind without admin role", actor(models.KindSupportAdmin, 5, models.RoleUser, nil), plainUser, false, "", ReasonUnsupportedActor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Classify(tt.sender, tt.recipient)
			assert.Equal(t, tt.allow, d.Allow)
			assert.Equal(t, tt.class, d.RoutingClass)
			assert.Equal(t, tt.reason, d.Reason)

			if tt.allow {
				assert.NoError(t, d.Err())
			} else {
				assert.ErrorIs(t, d.Err(), ErrPolicyDenied)
			}
			// deterministic
			assert.Equal(t, d, Classify(tt.sender, tt.recipient))
		})
	}
}

func TestMessageCompany(t *testing.T) {
	companyA := uintPtr(7)
	employee := actor(models.KindEndUser, 1, models.RoleEmployee, companyA)
	admin := actor(models.KindSupportAdmin, 1, models.RoleAdmin, nil)
	plain := actor(models.KindEndUser, 2, models.RoleUser, nil)

	assert.Equal(t, uintPtr(7), messageCompany(employee, admin))
	assert.Equal(t, uintPtr(7), messageCompany(admin, employee))
	assert.Nil(t, messageCompany(plain, admin))
}
