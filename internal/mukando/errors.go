package mukando

import (
	"fmt"

	"github.com/fkhayef/smartrewards/pkg/apperror"
)

// Common errors
var (
	ErrGroupNotFound    = fmt.Errorf("savings group %w", apperror.ErrNotFound)
	ErrCustomerNotFound = fmt.Errorf("customer %w", apperror.ErrNotFound)
	ErrBusinessNotFound = fmt.Errorf("business %w", apperror.ErrNotFound)
	ErrMemberNotFound   = fmt.Errorf("membership %w", apperror.ErrNotFound)
	ErrNotGroupBusiness = fmt.Errorf("%w: group is hosted by another business", apperror.ErrPermission)
	ErrAlreadyMember    = fmt.Errorf("customer is %w of this group", apperror.ErrDuplicateMembership)
	ErrGroupFull        = fmt.Errorf("group %w", apperror.ErrCapacity)
	ErrNotAMember       = fmt.Errorf("customer is %w of this group", apperror.ErrNotMember)

	ErrNothingToDistribute = apperror.InvalidState("group has no unpaid bonus to distribute")
	ErrNoMembers           = apperror.InvalidState("group has no members")
	ErrNotMatured          = apperror.InvalidState("payout period has not elapsed")
)

func errStatus(action string, s Status) error {
	return apperror.InvalidState("cannot %s a group that is %s", action, s)
}
