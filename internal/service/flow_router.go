package service

import (
	"github.com/panierscan/authcore/internal/constants"
)

// NextAction 验证流程的下一步动作
type NextAction string

const (
	ActionCreateAccountThenEnterApp   NextAction = "create_account_then_enter_app"
	ActionRetryLoginThenEnterApp      NextAction = "retry_login_then_enter_app"
	ActionMarkPhoneLinkedThenEnterApp NextAction = "mark_phone_linked_then_enter_app"
	ActionEnterNewPassword            NextAction = "enter_new_password"
	ActionEnterApp                    NextAction = "enter_app"
	ActionStayOnVerification          NextAction = "stay_on_verification"
	ActionRestartVerification         NextAction = "restart_verification"
	ActionRetry                       NextAction = "retry"
	ActionFixInput                    NextAction = "fix_input"
)

// NextStep 路由结果
type NextStep struct {
	Action            NextAction   `json:"action"`
	Reason            string       `json:"reason"`
	PhoneNumber       string       `json:"phone_number,omitempty"`
	Token             string       `json:"token,omitempty"`
	AttemptsRemaining int          `json:"attempts_remaining,omitempty"`
	Credentials       *Credentials `json:"-"`
}

// FlowRouter 原因 × 结果 → 下一步 的映射表
type FlowRouter struct{}

// NewFlowRouter 创建流程路由
func NewFlowRouter() *FlowRouter {
	return &FlowRouter{}
}

// Route 根据验证原因与校验结果决定下一步
func (r *FlowRouter) Route(reason string, result VerifyCodeResult) NextStep {
	step := NextStep{
		Reason:      reason,
		PhoneNumber: result.PhoneNumber,
	}
	switch result.Outcome {
	case OTPOutcomeVerified:
		return r.verified(step, reason, result.Token, result.Credentials)
	case OTPOutcomeIncorrectCode:
		step.Action = ActionStayOnVerification
		step.AttemptsRemaining = result.AttemptsRemaining
	case OTPOutcomeSessionExpired, OTPOutcomeAlreadyConsumed:
		step.Action = ActionRestartVerification
	case OTPOutcomeInvalidInput:
		step.Action = ActionFixInput
	default:
		step.Action = ActionRetry
	}
	return step
}

// RouteSkipped 网关跳过验证时按已验证处理
func (r *FlowRouter) RouteSkipped(reason string, result RequestCodeResult, credentials *Credentials) NextStep {
	step := NextStep{
		Reason:      reason,
		PhoneNumber: result.PhoneNumber,
	}
	return r.verified(step, reason, result.Token, credentials)
}

func (r *FlowRouter) verified(step NextStep, reason, token string, credentials *Credentials) NextStep {
	switch reason {
	case constants.VerificationReasonRegistration:
		step.Action = ActionCreateAccountThenEnterApp
	case constants.VerificationReasonLogin:
		step.Action = ActionRetryLoginThenEnterApp
		step.Credentials = credentials
	case constants.VerificationReasonPhoneLinking:
		step.Action = ActionMarkPhoneLinkedThenEnterApp
	case constants.VerificationReasonPasswordReset:
		step.Action = ActionEnterNewPassword
	case constants.VerificationReasonPhoneReverification:
		step.Action = ActionEnterApp
	default:
		step.Action = ActionFixInput
		return step
	}
	step.Token = token
	return step
}
