package login

import "github.com/zelosify/zelosify/server/pkg/metrics"

// State is a position in the two-step login.
//
//	CredentialsPending --Begin--> TOTPPending --VerifyTOTP--> Authenticated
//	        any step may end in Rejected
type State string

const (
	StateCredentialsPending State = "CredentialsPending"
	StateTOTPPending        State = "TOTPPending"
	StateAuthenticated      State = "Authenticated"
	StateRejected           State = "Rejected"
)

// Terminal reports whether no further step can follow.
func (s State) Terminal() bool {
	return s == StateAuthenticated || s == StateRejected
}

// next returns the state a successful step leads to.
func (s State) next() State {
	switch s {
	case StateCredentialsPending:
		return StateTOTPPending
	case StateTOTPPending:
		return StateAuthenticated
	}
	return StateRejected
}

func observe(step string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	metrics.LoginSteps.WithLabelValues(step, outcome).Inc()
}
