package driverpath

import (
	"strings"
)

// Scheme identifies which transport a Path addresses.
type Scheme int

const (
	// SchemeNull is the zero value: an empty or unparseable path.
	SchemeNull Scheme = iota
	// SchemeUSB addresses a device by vendor/product/interface/serial.
	SchemeUSB
	// SchemeSerial addresses a device by its tty device path.
	SchemeSerial
)

func (s Scheme) String() string {
	switch s {
	case SchemeUSB:
		return "usb"
	case SchemeSerial:
		return "serial"
	default:
		return ""
	}
}

// Path is a parsed device address. The zero value is a valid empty path
// (Scheme == SchemeNull) that is never equal-mismatched against anything,
// since every field is empty and therefore a wildcard.
type Path struct {
	Scheme      Scheme
	VendorID    string
	ProductID   string
	Interface   string
	SerialNo    string
	DevicePath  string
}

// Parse splits a textual driver path into its fields. An empty input string
// produces the zero Path. Unrecognized scheme names also produce the zero
// Path; none of the input text is retained, and IsValid reports the result
// as a valid empty (wildcard) path.
func Parse(s string) Path {
	if s == "" {
		return Path{}
	}

	// A serial path's device node itself contains '/', so its grammar is
	// scheme + '@' + verbatim device path, never split further.
	if idx := strings.IndexByte(s, '@'); idx >= 0 && s[:idx] == "serial" {
		return Path{Scheme: SchemeSerial, DevicePath: s[idx+1:]}
	}

	tokens := strings.SplitN(s, "/", 6)
	switch tokens[0] {
	case "usb":
		p := Path{Scheme: SchemeUSB}
		if len(tokens) > 1 {
			p.VendorID = tokens[1]
		}
		if len(tokens) > 2 {
			p.ProductID = tokens[2]
		}
		if len(tokens) > 3 {
			p.Interface = tokens[3]
		}
		if len(tokens) > 4 {
			p.SerialNo = tokens[4]
		}
		if len(tokens) > 5 {
			p.DevicePath = tokens[5]
		}
		return p
	default:
		return Path{}
	}
}

// IsValid reports whether the path is either empty (a wildcard matching
// anything) or has a recognized scheme.
func (p Path) IsValid() bool {
	if p.IsEmpty() {
		return true
	}
	return p.Scheme != SchemeNull
}

// IsEmpty reports whether every field of p is unset.
func (p Path) IsEmpty() bool {
	return p == Path{}
}

// IsPartial reports whether some, but not necessarily all, of the fields
// that scheme requires are unset.
func (p Path) IsPartial() bool {
	switch p.Scheme {
	case SchemeUSB:
		return p.VendorID == "" || p.ProductID == "" || p.Interface == "" || p.SerialNo == ""
	case SchemeSerial:
		return p.DevicePath == ""
	default:
		return true
	}
}

// String renders the path in its canonical textual form. A serial path
// always renders with an explicit trailing '@', even when DevicePath is
// empty, per the addressing contract: "serial@" is a deliberate marker, not
// the bare word "serial".
func (p Path) String() string {
	switch p.Scheme {
	case SchemeUSB:
		fields := []string{"usb", p.VendorID, p.ProductID, p.Interface, p.SerialNo}
		s := strings.Join(fields, "/")
		if p.DevicePath != "" {
			s += "/" + p.DevicePath
		}
		return s
	case SchemeSerial:
		return "serial@" + p.DevicePath
	default:
		return ""
	}
}

// Equal implements partial-match equality: a field that is empty on either
// side is a wildcard and never causes a mismatch. Two paths of different,
// non-null schemes are never equal. This is reflexive, symmetric, and
// monotone under field-filling (filling a wildcard with a matching value
// preserves equality; filling it with a non-matching value breaks it).
func (p Path) Equal(other Path) bool {
	if p.Scheme == SchemeSerial && other.Scheme == SchemeSerial {
		return fieldsMatch(p.DevicePath, other.DevicePath)
	}

	if p.Scheme != SchemeNull && other.Scheme != SchemeNull && p.Scheme != other.Scheme {
		return false
	}

	if !fieldsMatch(p.VendorID, other.VendorID) {
		return false
	}
	if !fieldsMatch(p.ProductID, other.ProductID) {
		return false
	}
	if !fieldsMatch(p.Interface, other.Interface) {
		return false
	}
	if !fieldsMatch(p.SerialNo, other.SerialNo) {
		return false
	}
	if !fieldsMatch(p.DevicePath, other.DevicePath) {
		return false
	}
	return true
}

// fieldsMatch implements the wildcard rule for a single field pair.
func fieldsMatch(a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	return a == b
}
