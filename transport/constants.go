package transport

// Frame markers, generalized from the Infineon-style bootloader packet
// framing the cyacd/protocol stack used for a single microcontroller family
// into a transport-independent RPC frame for the full target OS opcode set.
const (
	// StartOfPacket marks the beginning of every frame.
	StartOfPacket = 0x01
	// EndOfPacket marks the end of every frame.
	EndOfPacket = 0x17
	// MinFrameSize is SOP(1) + OPCODE/RESULT(1) + LEN(2) + CHECKSUM(2) + EOP(1).
	MinFrameSize = 7
	// MaxRetries is the number of attempts (including the first) made for
	// any opcode that fails with a Protocol error.
	MaxRetries = 3
)

// Opcode identifies a remote operation. Values are assigned by this library
// and agreed with the target firmware out of band (they are not meaningful
// beyond this process pair, unlike the Infineon bootloader's standardized
// command codes).
type Opcode byte

const (
	OpIsBootloader       Opcode = 0x01
	OpIsBootloaderLegacy Opcode = 0x02
	OpBootloaderAttr     Opcode = 0x03
	OpBootloaderAttrLegacy Opcode = 0x04
	OpGetSysInfo         Opcode = 0x05
	OpGetPublicKey       Opcode = 0x06
	OpReadFlash          Opcode = 0x07
	OpWriteFlash         Opcode = 0x08
	OpEraseFlash         Opcode = 0x09
	OpVerifySignature    Opcode = 0x0A
	OpResetBootloader    Opcode = 0x0B

	OpPosixOpen     Opcode = 0x10
	OpPosixRead     Opcode = 0x11
	OpPosixWrite    Opcode = 0x12
	OpPosixLseek    Opcode = 0x13
	OpPosixIoctl    Opcode = 0x14
	OpPosixClose    Opcode = 0x15
	OpPosixStat     Opcode = 0x16
	OpPosixFstat    Opcode = 0x17
	OpPosixMkdir    Opcode = 0x18
	OpPosixRmdir    Opcode = 0x19
	OpPosixUnlink   Opcode = 0x1A
	OpPosixRename   Opcode = 0x1B
	OpPosixOpendir  Opcode = 0x1C
	OpPosixReaddir  Opcode = 0x1D
	OpPosixClosedir Opcode = 0x1E
	OpPosixTelldir  Opcode = 0x1F
	OpPosixSeekdir  Opcode = 0x20
	OpPosixRewinddir Opcode = 0x21

	OpGetTime Opcode = 0x28
	OpSetTime Opcode = 0x29
	OpExec    Opcode = 0x2A
	OpMkfs    Opcode = 0x2B
	OpReset   Opcode = 0x2C
	OpFlush   Opcode = 0x2D

	OpGetPathList Opcode = 0x30

	OpAuthStart  Opcode = 0x38
	OpAuthFinish Opcode = 0x39

	OpTaskGetInfo Opcode = 0x40
	OpKillPid     Opcode = 0x41
)
