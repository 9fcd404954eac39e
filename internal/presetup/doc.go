// Package presetup drives the receiver's line-based telnet interface before a
// transfer: power on, optional preset selection, and LFE subwoofer mode with
// the calibrated low-pass frequency.
package presetup
