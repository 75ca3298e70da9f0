package link

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// nameFieldSize is the fixed width of SysInfo.Name on the wire.
const nameFieldSize = 24

// LegacyBootloaderVersion is the version threshold below which the host
// caches and restores the image's first flash page itself.
// At or above this version the target caches the first page internally.
const LegacyBootloaderVersion = 0x400

// SerialNumber is the target's 128-bit identity, carried as four
// little-endian 32-bit words both in SysInfo and in BootloaderAttrs.
type SerialNumber [4]uint32

// String renders the serial number in the hyphenated hex grouping used by
// the original StratifyOS tooling: XXXXXXXX-XXXXXXXX-XXXXXXXX-XXXXXXXX.
func (s SerialNumber) String() string {
	return fmt.Sprintf("%08X-%08X-%08X-%08X", s[0], s[1], s[2], s[3])
}

// Equal reports whether two serial numbers are identical.
func (s SerialNumber) Equal(other SerialNumber) bool { return s == other }

// ParseSerialNumber parses the hyphenated hex grouping produced by String
// back into a SerialNumber.
func ParseSerialNumber(text string) (SerialNumber, error) {
	parts := strings.Split(text, "-")
	if len(parts) != 4 {
		return SerialNumber{}, fmt.Errorf("serial number %q: expected 4 hyphen-separated groups, got %d", text, len(parts))
	}
	var s SerialNumber
	for i, p := range parts {
		var word uint32
		if _, err := fmt.Sscanf(p, "%08X", &word); err != nil {
			return SerialNumber{}, fmt.Errorf("serial number %q: group %d: %w", text, i, err)
		}
		s[i] = word
	}
	return s, nil
}

func decodeSerialNumber(data []byte) SerialNumber {
	var s SerialNumber
	for i := 0; i < 4 && (i+1)*4 <= len(data); i++ {
		s[i] = binary.LittleEndian.Uint32(data[i*4 : i*4+4])
	}
	return s
}

// SysInfo is the target's system-identity snapshot.
type SysInfo struct {
	Name       string
	Serial     SerialNumber
	HardwareID uint32
	CPUFreq    uint32
	Signature  uint32
	Version    string
	CPUArch    string
	OFlags     uint32
}

// Valid reports whether s was ever populated by a real device response.
func (s SysInfo) Valid() bool { return s.CPUFreq != 0 }

// decodeSysInfo parses the fixed-width wire layout for get_sys_info:
// name[24], serial[16], hardware_id:u32, cpu_freq:u32, signature:u32,
// o_flags:u32, followed by NUL-terminated version and cpu_arch strings.
func decodeSysInfo(data []byte) (SysInfo, error) {
	const fixedSize = nameFieldSize + 16 + 4 + 4 + 4 + 4
	if len(data) < fixedSize {
		return SysInfo{}, fmt.Errorf("short sys_info response: %d bytes", len(data))
	}

	info := SysInfo{
		Name:       cString(data[0:nameFieldSize]),
		Serial:     decodeSerialNumber(data[nameFieldSize : nameFieldSize+16]),
		HardwareID: binary.LittleEndian.Uint32(data[nameFieldSize+16 : nameFieldSize+20]),
		CPUFreq:    binary.LittleEndian.Uint32(data[nameFieldSize+20 : nameFieldSize+24]),
		Signature:  binary.LittleEndian.Uint32(data[nameFieldSize+24 : nameFieldSize+28]),
		OFlags:     binary.LittleEndian.Uint32(data[nameFieldSize+28 : nameFieldSize+32]),
	}

	rest := data[fixedSize:]
	version, rest := readCStringField(rest)
	arch, _ := readCStringField(rest)
	info.Version = version
	info.CPUArch = arch

	return info, nil
}

// bootloaderSyntheticSysInfo builds the synthetic SysInfo constructed when a
// connection classifies as Bootloader: "a synthetic SysInfo
// is constructed with name='bootloader', hardware_id and serial taken from
// bootloader attrs".
func bootloaderSyntheticSysInfo(attrs BootloaderAttrs) SysInfo {
	return SysInfo{
		Name:       "bootloader",
		Serial:     attrs.SerialNo,
		HardwareID: attrs.HardwareID,
		CPUFreq:    1, // nonzero so SysInfo.Valid() holds for a classified bootloader
	}
}

// BootloaderAttrs is the target's bootloader identity and layout.
type BootloaderAttrs struct {
	Version      uint16
	StartAddress uint32
	HardwareID   uint32
	SerialNo     SerialNumber
}

// IsLegacy reports whether this bootloader predates the version threshold
// at which the target began caching the first flash page itself.
func (b BootloaderAttrs) IsLegacy() bool { return b.Version < LegacyBootloaderVersion }

func decodeBootloaderAttrs(data []byte) (BootloaderAttrs, error) {
	const size = 2 + 4 + 4 + 16
	if len(data) < size {
		return BootloaderAttrs{}, fmt.Errorf("short bootloader_attr response: %d bytes", len(data))
	}
	return BootloaderAttrs{
		Version:      binary.LittleEndian.Uint16(data[0:2]),
		StartAddress: binary.LittleEndian.Uint32(data[2:6]),
		HardwareID:   binary.LittleEndian.Uint32(data[6:10]),
		SerialNo:     decodeSerialNumber(data[10:26]),
	}, nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func readCStringField(b []byte) (string, []byte) {
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), b[i+1:]
		}
	}
	return string(b), nil
}
