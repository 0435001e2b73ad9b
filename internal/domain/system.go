package domain

import "github.com/google/uuid"

// SystemUserID is the well-known account that issues rewards. It is a
// real account with the same invariants as any user balance: it must be
// funded (treasury deposits) before it can pay out, so reward issuance
// can never silently mint value outside the double-entry discipline.
var SystemUserID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
