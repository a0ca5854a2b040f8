package handshake

import (
	"context"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

// Handshake states.
const (
	StateNotStarted           = "NOT_STARTED"
	StateModeSetNonTx         = "MODE_SET_NON_TRANSACTION"
	StateModeConfirmed        = "MODE_CONFIRMED"
	StateConfigurationQueried = "CONFIGURATION_QUERIED"
	StateConfiguring          = "CONFIGURING"
	StateModeSetTx            = "MODE_SET_TRANSACTION"
	StateModeConfirmedTx      = "MODE_CONFIRMED_TX"
	StateComplete             = "COMPLETE"
	StateFailed               = "FAILED"
)

const (
	eventSetNonTx           = "set_non_transaction"
	eventConfirmMode        = "confirm_mode"
	eventQueryConfiguration = "query_configuration"
	eventConfigure          = "configure"
	eventSetTx              = "set_transaction"
	eventConfirmTx          = "confirm_transaction"
	eventComplete           = "complete"
	eventFail               = "fail"
)

func newMachine(logger *zap.Logger) *fsm.FSM {
	return fsm.NewFSM(
		StateNotStarted,
		fsm.Events{
			{Name: eventSetNonTx, Src: []string{StateNotStarted}, Dst: StateModeSetNonTx},
			{Name: eventConfirmMode, Src: []string{StateModeSetNonTx}, Dst: StateModeConfirmed},
			{Name: eventQueryConfiguration, Src: []string{StateModeConfirmed}, Dst: StateConfigurationQueried},
			{Name: eventConfigure, Src: []string{StateConfigurationQueried}, Dst: StateConfiguring},
			{Name: eventSetTx, Src: []string{StateConfigurationQueried, StateConfiguring}, Dst: StateModeSetTx},
			{Name: eventConfirmTx, Src: []string{StateModeSetTx}, Dst: StateModeConfirmedTx},
			{Name: eventComplete, Src: []string{StateModeConfirmedTx}, Dst: StateComplete},
			{Name: eventFail, Src: []string{
				StateNotStarted, StateModeSetNonTx, StateModeConfirmed, StateConfigurationQueried,
				StateConfiguring, StateModeSetTx, StateModeConfirmedTx,
			}, Dst: StateFailed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Debug("Handshake transition",
					zap.String("event", e.Event),
					zap.String("from", e.Src),
					zap.String("to", e.Dst),
				)
			},
		},
	)
}
