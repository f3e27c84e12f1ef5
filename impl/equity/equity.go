// Package equity computes a joining participant's monetary share of an
// event's cost. Amounts are integer minor currency units; member shares use
// truncating integer division, so the sum of shares may undershoot the
// pending amount by a remainder smaller than the division count.
package equity

import (
	"evsync/entity"
)

// Allocate returns the share for a participant with the given role.
// Hosts owe the deposit; members owe an equal split of the pending amount.
// EquityDivision below 1 violates the input contract and fails instead of
// dividing; event data is validated at request-creation time, so hitting
// this here means a corrupted event document.
func Allocate(event *entity.Event, role entity.MemberRole) (int64, error) {
	if role == entity.RoleHost {
		return event.DepositAmount, nil
	}
	if event.EquityDivision < 1 {
		return 0, entity.ErrInvalidEquityDivision
	}
	return event.PendingAmount / event.EquityDivision, nil
}
