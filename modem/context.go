package modem

import "lorahal/core"

// ContextType selects one of the modem's persistent context regions.
type ContextType uint8

// Persistent context regions.
const (
	ContextLoRaWANStack ContextType = iota
	ContextKeyModem
	ContextModem
	ContextSecureElement
)

// Fixed byte offsets of each region inside the NVM file. The LoRaWAN
// stack region is the only one addressed with an extra caller offset
// (multi-stack support).
const (
	addrLoRaWANStack  = 0
	addrKeyModem      = 50
	addrModem         = 75
	addrSecureElement = 100
)

func contextAddr(ctx ContextType, offset uint32) uint32 {
	switch ctx {
	case ContextLoRaWANStack:
		return addrLoRaWANStack + offset
	case ContextKeyModem:
		return addrKeyModem
	case ContextModem:
		return addrModem
	case ContextSecureElement:
		return addrSecureElement
	default:
		core.Panic("modem: unknown context type %d", ctx)
		return 0
	}
}

// ContextStore persists buf into the given context region. offset is
// honored only for the LoRaWAN stack region.
func ContextStore(ctx ContextType, offset uint32, buf []byte) {
	core.NvmWrite(contextAddr(ctx, offset), buf)
}

// ContextRestore fills buf from the given context region.
func ContextRestore(ctx ContextType, offset uint32, buf []byte) {
	core.NvmRead(contextAddr(ctx, offset), buf)
}
