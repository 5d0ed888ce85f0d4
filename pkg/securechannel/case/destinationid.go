package casesession

import (
	"encoding/binary"

	"github.com/quietridge/matter/pkg/crypto"
)

// buildDestinationMessage assembles the HMAC input per Section 4.14.2.4.1:
// initiatorRandom || rootPublicKey || fabricID(LE) || nodeID(LE).
func buildDestinationMessage(
	initiatorRandom [RandomSize]byte,
	rootPublicKey [crypto.P256PublicKeySizeBytes]byte,
	fabricID, nodeID uint64,
) []byte {
	msg := make([]byte, 0, RandomSize+crypto.P256PublicKeySizeBytes+16)
	msg = append(msg, initiatorRandom[:]...)
	msg = append(msg, rootPublicKey[:]...)

	var idBuf [8]byte
	binary.LittleEndian.PutUint64(idBuf[:], fabricID)
	msg = append(msg, idBuf[:]...)
	binary.LittleEndian.PutUint64(idBuf[:], nodeID)
	msg = append(msg, idBuf[:]...)

	return msg
}

// GenerateDestinationID computes the destination identifier that lets a
// CASE initiator name a target fabric and node without revealing either,
// per Section 4.14.2.4.1:
//
//	destinationId = HMAC-SHA256(key=IPK, message=initiatorRandom||rootPublicKey||fabricId||nodeId)
//
// ipk is the 16-byte Identity Protection Key derived from the operational
// group key, not the raw epoch key.
func GenerateDestinationID(
	initiatorRandom [RandomSize]byte,
	rootPublicKey [crypto.P256PublicKeySizeBytes]byte,
	fabricID uint64,
	nodeID uint64,
	ipk [crypto.SymmetricKeySize]byte,
) [DestinationIDSize]byte {
	msg := buildDestinationMessage(initiatorRandom, rootPublicKey, fabricID, nodeID)
	return crypto.HMACSHA256(ipk[:], msg)
}

// GenerateDestinationIDFromEpochKey derives the IPK from epochKey and
// compressedFabricID, then computes the destination identifier.
func GenerateDestinationIDFromEpochKey(
	initiatorRandom [RandomSize]byte,
	rootPublicKey [crypto.P256PublicKeySizeBytes]byte,
	fabricID uint64,
	nodeID uint64,
	epochKey [crypto.SymmetricKeySize]byte,
	compressedFabricID [crypto.CompressedFabricIDSize]byte,
) ([DestinationIDSize]byte, error) {
	ipkSlice, err := crypto.DeriveGroupOperationalKeyV1(epochKey[:], compressedFabricID[:])
	if err != nil {
		return [DestinationIDSize]byte{}, err
	}

	var ipk [crypto.SymmetricKeySize]byte
	copy(ipk[:], ipkSlice)

	return GenerateDestinationID(initiatorRandom, rootPublicKey, fabricID, nodeID, ipk), nil
}

// MatchDestinationID reports whether destinationID matches the ID computed
// from the given candidate fabric/node/IPK. The responder calls this once
// per installed NOC and IPK epoch key until it finds a match.
func MatchDestinationID(
	destinationID [DestinationIDSize]byte,
	initiatorRandom [RandomSize]byte,
	rootPublicKey [crypto.P256PublicKeySizeBytes]byte,
	fabricID uint64,
	nodeID uint64,
	ipk [crypto.SymmetricKeySize]byte,
) bool {
	candidate := GenerateDestinationID(initiatorRandom, rootPublicKey, fabricID, nodeID, ipk)
	return destinationID == candidate
}
