package securechannel

import (
	"errors"
	"time"

	"github.com/quietridge/matter/pkg/crypto"
	"github.com/quietridge/matter/pkg/fabric"
	casesession "github.com/quietridge/matter/pkg/securechannel/case"
)

// createFabricLookupFunc creates a fabric lookup function for CASE responder.
func (m *Manager) createFabricLookupFunc() casesession.FabricLookupFunc {
	return func(destinationID [casesession.DestinationIDSize]byte, initiatorRandom [casesession.RandomSize]byte) (*fabric.FabricInfo, *crypto.P256KeyPair, error) {
		if m.config.FabricTable == nil {
			return nil, nil, errors.New("securechannel: no fabric table configured")
		}

		// destinationID = HMAC-SHA256(key=IPK, msg=initiatorRandom || rootPubKey ||
		// fabricID || nodeID), per Spec Section 4.14.2.4. Check every fabric's
		// group operational key against the claimed destination ID instead of
		// returning whichever fabric happens to be first in the table.
		var matchedFabric *fabric.FabricInfo
		_ = m.config.FabricTable.ForEach(func(info *fabric.FabricInfo) error {
			ipkSlice, err := crypto.DeriveGroupOperationalKeyV1(info.IPK[:], info.CompressedFabricID[:])
			if err != nil {
				return nil
			}
			var ipk [crypto.SymmetricKeySize]byte
			copy(ipk[:], ipkSlice)
			if casesession.MatchDestinationID(destinationID, initiatorRandom, info.RootPublicKey, uint64(info.FabricID), uint64(info.NodeID), ipk) {
				matchedFabric = info
				return errStopFabricIteration
			}
			return nil
		})

		if matchedFabric == nil {
			return nil, nil, casesession.ErrNoSharedRoot
		}

		return matchedFabric, m.config.OperationalKey, nil
	}
}

// errStopFabricIteration stops createFabricLookupFunc's ForEach walk once a
// matching fabric is found; it is never surfaced to callers.
var errStopFabricIteration = errors.New("securechannel: stop fabric iteration")

// createResumptionLookupFunc creates a resumption lookup function for CASE responder.
func (m *Manager) createResumptionLookupFunc() casesession.ResumptionLookupFunc {
	return func(resumptionID [casesession.ResumptionIDSize]byte) ([]byte, *fabric.FabricInfo, *crypto.P256KeyPair, bool) {
		// Resumption record storage is not yet wired to the fabric table;
		// every resumption lookup falls back to a full CASE handshake.
		return nil, nil, nil, false
	}
}

// HasActiveHandshake returns true if there's an active handshake on the exchange.
func (m *Manager) HasActiveHandshake(exchangeID uint16) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.handshakes[exchangeID]
	return exists
}

// GetHandshakeType returns the type of handshake on the exchange, if any.
func (m *Manager) GetHandshakeType(exchangeID uint16) (HandshakeType, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctx, exists := m.handshakes[exchangeID]
	if !exists {
		return 0, false
	}
	return ctx.handshakeType, true
}

// CleanupExpiredHandshakes removes handshakes that have timed out.
func (m *Manager) CleanupExpiredHandshakes() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for exchangeID, ctx := range m.handshakes {
		if now.Sub(ctx.startTime) > HandshakeTimeout {
			m.log.Warnf("exchange %d: CASE handshake timed out after %v", exchangeID, now.Sub(ctx.startTime))
			delete(m.handshakes, exchangeID)
			if m.config.Callbacks.OnSessionError != nil {
				m.config.Callbacks.OnSessionError(errors.New("handshake timeout"), "Timeout")
			}
		}
	}
}

// ActiveHandshakeCount returns the number of active handshakes.
func (m *Manager) ActiveHandshakeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handshakes)
}
