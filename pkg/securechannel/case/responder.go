package casesession

import (
	"fmt"
	"io"

	"github.com/quietridge/matter/pkg/crypto"
)

// HandleSigma1 processes an incoming Sigma1 message (responder only).
// Returns the response (Sigma2 or Sigma2Resume) and whether resumption was used.
func (s *Session) HandleSigma1(data []byte, localSessionID uint16) (response []byte, isResumption bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role != RoleResponder {
		return nil, false, fmt.Errorf("%w: HandleSigma1() only valid for responder", ErrInvalidState)
	}
	if s.state != StateInit {
		return nil, false, fmt.Errorf("%w: expected Init state, got %s", ErrInvalidState, s.state)
	}

	sigma1, err := DecodeSigma1(data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode Sigma1: %w", err)
	}

	hasResumptionID := sigma1.ResumptionID != nil
	hasResumeMIC := sigma1.InitiatorResumeMIC != nil
	if hasResumptionID != hasResumeMIC {
		return nil, false, ErrMissingResumptionField
	}

	s.msg1Bytes = data
	s.localSessionID = localSessionID
	s.peerSessionID = sigma1.InitiatorSessionID
	s.peerRandom = sigma1.InitiatorRandom
	s.peerMRPParams = sigma1.MRPParams
	copy(s.peerEphPubKey[:], sigma1.InitiatorEphPubKey[:])

	if hasResumptionID {
		resp, resumed, attempted, resumeErr := s.tryResume(sigma1)
		if attempted {
			return resp, resumed, resumeErr
		}
		// Lookup missed or MIC didn't verify: fall through to full handshake.
	}

	fabricInfo, operationalKey, err := s.fabricLookup(sigma1.DestinationID, sigma1.InitiatorRandom)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrNoSharedRoot, err)
	}
	s.fabricInfo = fabricInfo
	s.operationalKey = operationalKey
	s.ipk = deriveIPK(fabricInfo)

	return s.generateSigma2(sigma1)
}

// tryResume attempts the resumption path of HandleSigma1: look up the
// referenced session, then verify Resume1MIC under the derived S1RK.
// attempted=false means "lookup missed or MIC didn't verify, try full
// handshake instead" and is not itself an error. Once a session is found
// and its MIC checks out, though, we're committed: any failure deriving
// Sigma2Resume from here on (attempted=true, err!=nil) is a real handshake
// error and must not be papered over by silently falling back to a full
// handshake the caller never asked for.
func (s *Session) tryResume(sigma1 *Sigma1) (response []byte, isResumption bool, attempted bool, err error) {
	if s.resumptionLookup == nil {
		return nil, false, false, nil
	}

	sharedSecret, fabricInfo, operationalKey, found := s.resumptionLookup(*sigma1.ResumptionID)
	if !found {
		return nil, false, false, nil
	}

	s1rk, err := DeriveS1RK(sharedSecret, sigma1.InitiatorRandom, *sigma1.ResumptionID)
	if err != nil || !VerifyResumeMIC(s1rk, Resume1Nonce, *sigma1.InitiatorResumeMIC) {
		return nil, false, false, nil
	}

	s.fabricInfo = fabricInfo
	s.operationalKey = operationalKey
	s.sharedSecret = sharedSecret
	s.ipk = deriveIPK(fabricInfo)

	resp, resumed, err := s.generateSigma2Resume(sigma1)
	return resp, resumed, true, err
}

func (s *Session) generateSigma2(sigma1 *Sigma1) ([]byte, bool, error) {
	if _, err := io.ReadFull(s.rand, s.localRandom[:]); err != nil {
		return nil, false, fmt.Errorf("failed to generate random: %w", err)
	}

	var err error
	s.ephKeyPair, err = crypto.P256GenerateKeyPair()
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}

	if _, err := io.ReadFull(s.rand, s.newResumptionID[:]); err != nil {
		return nil, false, fmt.Errorf("failed to generate resumption ID: %w", err)
	}

	s.sharedSecret, err = crypto.P256ECDH(s.ephKeyPair, sigma1.InitiatorEphPubKey[:])
	if err != nil {
		return nil, false, fmt.Errorf("failed to compute shared secret: %w", err)
	}

	var responderEphPubKey [crypto.P256PublicKeySizeBytes]byte
	copy(responderEphPubKey[:], s.ephKeyPair.P256PublicKey())

	tbsData2 := &TBSData2{
		ResponderNOC:       s.fabricInfo.NOC,
		ResponderICAC:      s.fabricInfo.ICAC,
		ResponderEphPubKey: responderEphPubKey,
		InitiatorEphPubKey: sigma1.InitiatorEphPubKey,
	}
	tbsData2Bytes, err := tbsData2.Encode()
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode TBSData2: %w", err)
	}

	signature, err := crypto.P256Sign(s.operationalKey, tbsData2Bytes)
	if err != nil {
		return nil, false, fmt.Errorf("failed to sign TBSData2: %w", err)
	}

	tbeData2 := &TBEData2{
		ResponderNOC:  s.fabricInfo.NOC,
		ResponderICAC: s.fabricInfo.ICAC,
		ResumptionID:  s.newResumptionID,
	}
	copy(tbeData2.Signature[:], signature)

	tbeData2Bytes, err := tbeData2.Encode()
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode TBEData2: %w", err)
	}

	s2k, err := DeriveS2K(s.sharedSecret, s.ipk, s.localRandom, responderEphPubKey, s.msg1Bytes)
	if err != nil {
		return nil, false, fmt.Errorf("failed to derive S2K: %w", err)
	}

	encrypted2, err := EncryptTBEData(s2k, tbeData2Bytes, Sigma2Nonce, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encrypt TBEData2: %w", err)
	}

	sigma2 := &Sigma2{
		ResponderRandom:    s.localRandom,
		ResponderSessionID: s.localSessionID,
		ResponderEphPubKey: responderEphPubKey,
		Encrypted2:         encrypted2,
		MRPParams:          s.localMRPParams,
	}

	msg2Bytes, err := sigma2.Encode()
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode Sigma2: %w", err)
	}
	s.msg2Bytes = msg2Bytes

	s.advanceTo(StateWaitingSigma3, s.log.Debugf, "sent Sigma2, session %d", s.localSessionID)
	return msg2Bytes, false, nil
}

func (s *Session) generateSigma2Resume(sigma1 *Sigma1) ([]byte, bool, error) {
	if _, err := io.ReadFull(s.rand, s.newResumptionID[:]); err != nil {
		return nil, false, fmt.Errorf("failed to generate resumption ID: %w", err)
	}

	s2rk, err := DeriveS2RK(s.sharedSecret, sigma1.InitiatorRandom, s.newResumptionID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to derive S2RK: %w", err)
	}

	resume2MIC, err := ComputeResumeMIC(s2rk, Resume2Nonce)
	if err != nil {
		return nil, false, fmt.Errorf("failed to compute Resume2MIC: %w", err)
	}

	sigma2Resume := &Sigma2Resume{
		ResumptionID:       s.newResumptionID,
		Resume2MIC:         resume2MIC,
		ResponderSessionID: s.localSessionID,
		MRPParams:          s.localMRPParams,
	}

	msg2Bytes, err := sigma2Resume.Encode()
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode Sigma2Resume: %w", err)
	}
	s.msg2Bytes = msg2Bytes
	s.usedResumption = true

	s.sessionKeys, err = DeriveResumptionSessionKeys(s.sharedSecret, s.ipk, s.msg1Bytes, s.msg2Bytes)
	if err != nil {
		return nil, false, fmt.Errorf("failed to derive session keys: %w", err)
	}

	s.advanceTo(StateComplete, s.log.Infof, "session %d resumed via Sigma2Resume", s.localSessionID)
	return msg2Bytes, true, nil
}

// HandleSigma3 processes an incoming Sigma3 message (responder only).
// Returns true if handshake succeeded.
func (s *Session) HandleSigma3(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role != RoleResponder {
		return fmt.Errorf("%w: HandleSigma3() only valid for responder", ErrInvalidState)
	}
	if s.state != StateWaitingSigma3 {
		return fmt.Errorf("%w: expected WaitingSigma3 state, got %s", ErrInvalidState, s.state)
	}

	sigma3, err := DecodeSigma3(data)
	if err != nil {
		return fmt.Errorf("failed to decode Sigma3: %w", err)
	}

	s.msg3Bytes = data

	s3k, err := DeriveS3K(s.sharedSecret, s.ipk, s.msg1Bytes, s.msg2Bytes)
	if err != nil {
		return fmt.Errorf("failed to derive S3K: %w", err)
	}

	tbeData3Bytes, err := DecryptTBEData(s3k, sigma3.Encrypted3, Sigma3Nonce, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	tbeData3, err := DecodeTBEData3(tbeData3Bytes)
	if err != nil {
		return fmt.Errorf("failed to decode TBEData3: %w", err)
	}

	s.peerNOC = tbeData3.InitiatorNOC
	s.peerICAC = tbeData3.InitiatorICAC

	if s.certValidator != nil {
		if err := s.verifySigma3Certificate(tbeData3); err != nil {
			s.log.Warnf("Sigma3 certificate check failed, session %d: %v", s.localSessionID, err)
			return err
		}
	}

	s.sessionKeys, err = DeriveSessionKeys(s.sharedSecret, s.ipk, s.msg1Bytes, s.msg2Bytes, s.msg3Bytes)
	if err != nil {
		return fmt.Errorf("failed to derive session keys: %w", err)
	}

	s.advanceTo(StateComplete, s.log.Infof,
		"CASE handshake complete, session %d, peer node 0x%016X", s.localSessionID, s.peerNodeID)
	return nil
}

// verifySigma3Certificate is HandleSigma3's counterpart to
// verifySigma2Certificate: same validate-then-verify-signature shape, but
// checked against the fabric ID rather than a target node ID, since a
// responder accepts any member of its fabric rather than one specific peer.
func (s *Session) verifySigma3Certificate(tbeData3 *TBEData3) error {
	peerCertInfo, err := s.certValidator(
		tbeData3.InitiatorNOC,
		tbeData3.InitiatorICAC,
		s.fabricInfo.RootPublicKey,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
	}

	if peerCertInfo.FabricID != uint64(s.fabricInfo.FabricID) {
		return fmt.Errorf("%w: peer fabric ID %d does not match expected %d",
			ErrInvalidCertificate, peerCertInfo.FabricID, s.fabricInfo.FabricID)
	}

	s.peerNodeID = peerCertInfo.NodeID

	var responderEphPubKey [crypto.P256PublicKeySizeBytes]byte
	copy(responderEphPubKey[:], s.ephKeyPair.P256PublicKey())

	tbsData3 := &TBSData3{
		InitiatorNOC:       tbeData3.InitiatorNOC,
		InitiatorICAC:      tbeData3.InitiatorICAC,
		InitiatorEphPubKey: s.peerEphPubKey,
		ResponderEphPubKey: responderEphPubKey,
	}

	tbsData3Bytes, err := tbsData3.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode TBSData3 for verification: %w", err)
	}

	valid, err := crypto.P256Verify(peerCertInfo.PublicKey[:], tbsData3Bytes, tbeData3.Signature[:])
	if err != nil || !valid {
		return fmt.Errorf("%w: TBSData3 signature verification failed", ErrSignatureInvalid)
	}
	return nil
}
