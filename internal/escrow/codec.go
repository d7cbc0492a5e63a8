package escrow

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Canonical binary layout of an escrow state. Big-endian, fixed field order:
//
//	version(1) | brandID(60) | influencerID(60) | oracleID(60) | platformID(60) |
//	escrowBalance(8) | platformFee(8) | requiredScore(1) | verificationScore(1) |
//	depositTick(8) | retentionEndTick(8) | flags(1)
//
// Identity fields are ASCII, zero-padded when unset. This layout is the
// ledger's own wire contract; there is no external chain to stay compatible
// with.
const (
	layoutVersion = 1
	encodedLen    = 1 + 4*IdentityLen + 8 + 8 + 1 + 1 + 8 + 8 + 1
)

const (
	flagOracleSet = 1 << iota
	flagActive
	flagVerified
	flagPaid
	flagRefunded
)

func (s *State) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, encodedLen)
	buf = append(buf, layoutVersion)
	for _, id := range []string{s.BrandID, s.InfluencerID, s.OracleID, s.PlatformID} {
		padded, err := padIdentity(id)
		if err != nil {
			return nil, err
		}
		buf = append(buf, padded...)
	}
	buf = binary.BigEndian.AppendUint64(buf, uint64(s.EscrowBalance))
	buf = binary.BigEndian.AppendUint64(buf, uint64(s.PlatformFee))
	buf = append(buf, byte(s.RequiredScore), byte(s.VerificationScore))
	buf = binary.BigEndian.AppendUint64(buf, s.DepositTick)
	buf = binary.BigEndian.AppendUint64(buf, s.RetentionEndTick)

	var flags byte
	if s.OracleSet {
		flags |= flagOracleSet
	}
	if s.IsActive {
		flags |= flagActive
	}
	if s.IsVerified {
		flags |= flagVerified
	}
	if s.IsPaid {
		flags |= flagPaid
	}
	if s.IsRefunded {
		flags |= flagRefunded
	}
	buf = append(buf, flags)
	return buf, nil
}

func (s *State) UnmarshalBinary(data []byte) error {
	if len(data) != encodedLen {
		return fmt.Errorf("escrow state: want %d bytes, got %d", encodedLen, len(data))
	}
	if data[0] != layoutVersion {
		return fmt.Errorf("escrow state: unknown layout version %d", data[0])
	}
	off := 1
	ids := make([]string, 4)
	for i := range ids {
		ids[i] = unpadIdentity(data[off : off+IdentityLen])
		off += IdentityLen
	}
	s.BrandID, s.InfluencerID, s.OracleID, s.PlatformID = ids[0], ids[1], ids[2], ids[3]

	s.EscrowBalance = int64(binary.BigEndian.Uint64(data[off:]))
	off += 8
	s.PlatformFee = int64(binary.BigEndian.Uint64(data[off:]))
	off += 8
	s.RequiredScore = int(data[off])
	s.VerificationScore = int(data[off+1])
	off += 2
	s.DepositTick = binary.BigEndian.Uint64(data[off:])
	off += 8
	s.RetentionEndTick = binary.BigEndian.Uint64(data[off:])
	off += 8

	flags := data[off]
	s.OracleSet = flags&flagOracleSet != 0
	s.IsActive = flags&flagActive != 0
	s.IsVerified = flags&flagVerified != 0
	s.IsPaid = flags&flagPaid != 0
	s.IsRefunded = flags&flagRefunded != 0
	return nil
}

func padIdentity(id string) ([]byte, error) {
	if id == "" {
		return make([]byte, IdentityLen), nil
	}
	if len(id) != IdentityLen {
		return nil, fmt.Errorf("identity %q is not %d characters", id, IdentityLen)
	}
	return []byte(id), nil
}

func unpadIdentity(b []byte) string {
	return strings.TrimRight(string(b), "\x00")
}
