package auth

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/user"
)

// Principal is the request-scoped identity every core operation receives.
type Principal struct {
	CompanyID  string
	UserID     string
	EmployeeID *string
	Role       user.Role
}

// FromClaims builds a Principal from verified access-token claims.
func FromClaims(claims map[string]interface{}) (Principal, error) {
	if t, _ := claims["type"].(string); t != "access" {
		return Principal{}, ErrInvalidToken
	}

	companyID, _ := claims["company_id"].(string)
	userID, _ := claims["user_id"].(string)
	role, _ := claims["role"].(string)
	if companyID == "" || userID == "" {
		return Principal{}, fmt.Errorf("%w: company_id and user_id claims are required", ErrInvalidToken)
	}
	if !user.Role(role).IsValid() {
		return Principal{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
	}

	p := Principal{CompanyID: companyID, UserID: userID, Role: user.Role(role)}
	if employeeID, ok := claims["employee_id"].(string); ok && employeeID != "" {
		p.EmployeeID = &employeeID
	}
	return p, nil
}

func (p Principal) Can(perm user.Permission) bool {
	return user.HasPermission(p.Role, perm)
}

// ScopeEmployee returns the employee the principal may act on. Self-only roles
// are pinned to their own employee regardless of the requested id.
func (p Principal) ScopeEmployee(requested string) (string, error) {
	if p.Role.IsSelfOnly() {
		if p.EmployeeID == nil {
			return "", user.ErrEmployeeNotLinked
		}
		if requested != "" && requested != *p.EmployeeID {
			return "", ErrForbidden
		}
		return *p.EmployeeID, nil
	}
	if requested == "" && p.EmployeeID != nil {
		return *p.EmployeeID, nil
	}
	return requested, nil
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, error) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok {
		return Principal{}, ErrMissingPrincipal
	}
	return p, nil
}
