// Package firmware drives a whole-image update onto a target, either
// through its bootloader (erase, stream, verify, commit) or through a
// running OS's flash-device node (ioctl-driven page writes). Both paths
// report progress through the same Validating → Erasing → Programming →
// (Verifying) → Committing → Done/Failed state machine.
package firmware
