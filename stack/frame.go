// Package stack implements a minimal LoRaWAN 1.0.x device layer: OTAA
// join, unconfirmed uplink framing and the session key handling both
// need. It drives the radio and timers exclusively through the HAL.
package stack

import (
	"bytes"
	"crypto/aes"
	"encoding/binary"
	"errors"

	"github.com/jacobsa/crypto/cmac"
)

// Frame directions per the LoRaWAN spec.
const (
	dirUplink   = 0
	dirDownlink = 1
)

// MHDR values (major 1.0).
const (
	mhdrJoinRequest   = 0x00
	mhdrJoinAccept    = 0x20
	mhdrUnconfirmedUp = 0x40
)

// DeviceKeys holds the OTAA provisioning material.
type DeviceKeys struct {
	DevEUI   [8]byte
	JoinEUI  [8]byte
	AppKey   [16]byte
	DevNonce uint16
}

// Session holds the state negotiated by a join.
type Session struct {
	NwkSKey    [16]byte
	AppSKey    [16]byte
	DevAddr    [4]byte
	FCntUp     uint32
	FCntDown   uint32
	DLSettings byte
	RXDelay    byte
	CFList     [16]byte
}

var (
	ErrBadMIC     = errors.New("stack: join accept MIC mismatch")
	ErrShortFrame = errors.New("stack: frame too short")
	ErrBadMHDR    = errors.New("stack: unexpected MHDR")
	ErrTooLong    = errors.New("stack: payload too long")
	ErrNotJoined  = errors.New("stack: no session established")
)

// reverse returns b in reverse byte order. EUIs and nonces go over the
// air little-endian.
func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

// payloadMIC is the 4-byte AES-CMAC over the raw payload, used by join
// request and join accept frames.
func payloadMIC(payload []byte, key [16]byte) [4]byte {
	var mic [4]byte
	h, _ := cmac.New(key[:])
	h.Write(payload)
	copy(mic[:], h.Sum(nil)[:4])
	return mic
}

// messageMIC is the 4-byte AES-CMAC over B0|payload, used by data
// frames (LoRaWAN 1.0.3 §4.4).
func messageMIC(payload []byte, key [16]byte, dir byte, devAddr [4]byte, fCnt uint32) [4]byte {
	b0 := make([]byte, 0, 16+len(payload))
	b0 = append(b0, 0x49, 0, 0, 0, 0, dir)
	b0 = append(b0, devAddr[:]...)
	b0 = binary.LittleEndian.AppendUint32(b0, fCnt)
	b0 = append(b0, 0, byte(len(payload)))
	b0 = append(b0, payload...)

	var mic [4]byte
	h, _ := cmac.New(key[:])
	h.Write(b0)
	copy(mic[:], h.Sum(nil)[:4])
	return mic
}

// encryptFRMPayload applies the LoRaWAN payload cipher (AES in the A-block
// counter construction, §4.3.3). Encryption and decryption are identical.
func encryptFRMPayload(key [16]byte, dir byte, devAddr [4]byte, fCnt uint32, payload []byte) ([]byte, error) {
	blocks := (len(payload) + aes.BlockSize - 1) / aes.BlockSize
	if blocks > 255 {
		return nil, ErrTooLong
	}
	cipher, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}

	var a, s, b [aes.BlockSize]byte
	a[0] = 0x01
	a[5] = dir
	copy(a[6:10], devAddr[:])
	binary.LittleEndian.PutUint32(a[10:14], fCnt)

	out := make([]byte, 0, blocks*aes.BlockSize)
	for i := 0; i < blocks; i++ {
		clear(b[:])
		copy(b[:], payload[i*aes.BlockSize:])
		a[15] = byte(i + 1)
		cipher.Encrypt(s[:], a[:])
		for j := range b {
			b[j] ^= s[j]
		}
		out = append(out, b[:]...)
	}
	return out[:len(payload)], nil
}

// JoinRequest builds the join-request PHYPayload for the device's
// current DevNonce.
func (k *DeviceKeys) JoinRequest() []byte {
	buf := make([]byte, 0, 23)
	buf = append(buf, mhdrJoinRequest)
	buf = append(buf, reverse(k.JoinEUI[:])...)
	buf = append(buf, reverse(k.DevEUI[:])...)
	buf = binary.LittleEndian.AppendUint16(buf, k.DevNonce)
	mic := payloadMIC(buf, k.AppKey)
	return append(buf, mic[:]...)
}

// DecodeJoinAccept decrypts and verifies a join-accept PHYPayload and
// derives the session keys for the device's current DevNonce. Frame
// counters start at zero.
func (k *DeviceKeys) DecodeJoinAccept(phy []byte) (*Session, error) {
	// MHDR + 12-byte accept + MIC is the minimum.
	if len(phy) < 17 {
		return nil, ErrShortFrame
	}
	if phy[0] != mhdrJoinAccept {
		return nil, ErrBadMHDR
	}

	// The network encrypts with aes128_decrypt, so the device recovers
	// the plaintext with the encrypt operation.
	cipher, err := aes.NewCipher(k.AppKey[:])
	if err != nil {
		return nil, err
	}
	enc := phy[1:]
	if len(enc)%aes.BlockSize != 0 {
		return nil, ErrShortFrame
	}
	plain := make([]byte, len(enc))
	for i := 0; i < len(enc); i += aes.BlockSize {
		cipher.Encrypt(plain[i:], enc[i:])
	}

	s := &Session{}
	var appNonce [3]byte
	var netID [3]byte
	copy(appNonce[:], plain[0:3])
	copy(netID[:], plain[3:6])
	copy(s.DevAddr[:], plain[6:10])
	s.DLSettings = plain[10]
	s.RXDelay = plain[11]
	if len(plain) > 16 {
		copy(s.CFList[:], plain[12:28])
	}

	micData := make([]byte, 0, 1+len(plain)-4)
	micData = append(micData, phy[0])
	micData = append(micData, plain[:len(plain)-4]...)
	mic := payloadMIC(micData, k.AppKey)
	if !bytes.Equal(mic[:], plain[len(plain)-4:]) {
		return nil, ErrBadMIC
	}

	// NwkSKey = aes128_encrypt(AppKey, 0x01 | AppNonce | NetID | DevNonce | pad16)
	// AppSKey = aes128_encrypt(AppKey, 0x02 | ...)
	seed := make([]byte, aes.BlockSize)
	seed[0] = 0x01
	copy(seed[1:4], appNonce[:])
	copy(seed[4:7], netID[:])
	binary.LittleEndian.PutUint16(seed[7:9], k.DevNonce)
	cipher.Encrypt(s.NwkSKey[:], seed)
	seed[0] = 0x02
	cipher.Encrypt(s.AppSKey[:], seed)

	return s, nil
}

// UplinkFrame builds an unconfirmed uplink PHYPayload on the given port
// and advances FCntUp.
func (s *Session) UplinkFrame(port byte, payload []byte) ([]byte, error) {
	fCnt := s.FCntUp

	buf := make([]byte, 0, 13+len(payload))
	buf = append(buf, mhdrUnconfirmedUp)
	buf = append(buf, s.DevAddr[:]...)
	buf = append(buf, 0x00) // FCtrl: no ADR, no ACK, no FOpts
	buf = append(buf, byte(fCnt), byte(fCnt>>8))
	buf = append(buf, port)

	enc, err := encryptFRMPayload(s.AppSKey, dirUplink, s.DevAddr, fCnt, payload)
	if err != nil {
		return nil, err
	}
	buf = append(buf, enc...)

	mic := messageMIC(buf, s.NwkSKey, dirUplink, s.DevAddr, fCnt)
	buf = append(buf, mic[:]...)

	s.FCntUp++
	return buf, nil
}
