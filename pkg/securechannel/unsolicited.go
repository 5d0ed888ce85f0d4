package securechannel

import "github.com/quietridge/matter/pkg/session"

// UnsolicitedHandler reacts to status reports a peer sends without a prior
// request on an established secure session — CloseSession teardown and
// Busy backpressure.
//
// See Matter Specification Section 4.11.1.4 (CloseSession) and 4.11.1.5 (Busy).
type UnsolicitedHandler struct {
	sessionManager *session.Manager
	callbacks      Callbacks
}

func NewUnsolicitedHandler(sessionManager *session.Manager, callbacks Callbacks) *UnsolicitedHandler {
	return &UnsolicitedHandler{sessionManager: sessionManager, callbacks: callbacks}
}

// HandleStatusReport dispatches a StatusReport received on localSessionID.
// Returns true if it was handled here, false if the caller should still
// pass it to upper layers.
func (h *UnsolicitedHandler) HandleStatusReport(localSessionID uint16, status *StatusReport) bool {
	if !status.IsSecureChannel() {
		return false
	}

	switch status.SecureChannelCode() {
	case ProtocolCodeCloseSession:
		return h.handleCloseSession(localSessionID, status)
	case ProtocolCodeBusy:
		return h.handleBusy(status)
	default:
		return false
	}
}

// handleCloseSession tears down the session per Section 4.11.1.4: remove
// all session state (the manager zeroizes keys) and notify the callback.
func (h *UnsolicitedHandler) handleCloseSession(localSessionID uint16, status *StatusReport) bool {
	if status.GeneralCode != GeneralCodeSuccess {
		return false
	}

	if h.sessionManager.FindSecureContext(localSessionID) == nil {
		return true // already removed
	}
	h.sessionManager.RemoveSecureContext(localSessionID)

	if h.callbacks.OnSessionClosed != nil {
		h.callbacks.OnSessionClosed(localSessionID)
	}
	return true
}

// handleBusy surfaces the responder's minimum retry wait time per Section
// 4.11.1.5.
func (h *UnsolicitedHandler) handleBusy(status *StatusReport) bool {
	if status.GeneralCode != GeneralCodeBusy {
		return false
	}

	if h.callbacks.OnResponderBusy != nil {
		h.callbacks.OnResponderBusy(status.BusyWaitTime())
	}
	return true
}

// SendCloseSession encodes a CloseSession message for the caller to send
// over the secure session before removing it locally. Send this when the
// interaction is complete, resources must be freed for a new session, or
// the fabric backing the session was removed.
func SendCloseSession() []byte {
	return CloseSession().Encode()
}

// SendBusy encodes a Busy status report carrying the minimum retry wait
// time. Per Section 4.11.1.5 this must only be sent in response to Sigma1
// or PBKDFParamRequest, with both R and S flags clear.
func SendBusy(waitTimeMs uint16) []byte {
	return Busy(waitTimeMs).Encode()
}

func IsCloseSession(status *StatusReport) bool {
	return status.GeneralCode == GeneralCodeSuccess &&
		status.IsSecureChannel() &&
		status.SecureChannelCode() == ProtocolCodeCloseSession
}

func IsBusyStatus(status *StatusReport) bool {
	return status.IsBusy()
}
