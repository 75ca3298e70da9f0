// Package driverpath parses and renders device addresses used to select a
// target among devices enumerated by a Session.
//
// Two address schemes are supported:
//
//	usb/<vendor>/<product>/<interface>/<serial>[/<devpath>]
//	serial@<devpath>
//
// A path may be partial: any empty field acts as a wildcard when the path is
// compared against another with Path.Equal. This lets a caller address "any
// device on interface 0" or "the device with this serial number, wherever it
// is plugged in" without enumerating every field.
package driverpath
