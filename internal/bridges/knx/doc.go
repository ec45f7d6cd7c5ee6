// Package knx implements the host-side KNX protocol stack described in
// SPEC_FULL.md: address and datapoint codecs, the cEMI/KNXnet-IP routing
// frame codec, a weighted round-robin priority queue, and the four layers
// a group-object application is built on.
//
// # Architecture
//
// The stack is a strict chain, each layer depending only on the interface
// of the one below it:
//
//	Transceiver -> Link -> Network -> Transport -> Application
//
// Transceiver owns the UDP multicast socket (KNXnet/IP routing, the
// 224.0.23.12:3671 default group). Link adds the priority queue and
// L_Data.con confirmation wait. Network passes group-addressed frames up,
// drops individually-addressed ones, and sets hop count 6 on outbound
// frames. Transport carries connectionless group data only, passing it
// through unchanged. Application exposes GroupValueWrite/Read/Response as plain Go
// calls, independent of the encoding underneath.
//
// # Group addresses
//
// Group addresses are stored as a 16-bit key regardless of display style;
// ParseGroupAddress accepts both 2-level (main/sub) and 3-level
// (main/middle/sub) notation.
//
// # Datapoint types
//
// EncodeValue/DecodeValue cover the common DPT main types used by the
// functional blocks in internal/binding: DPT 1.xxx (1-bit), 3.xxx
// (control), 5.xxx (1-byte unsigned/angle), 9.xxx (2-byte float), 14.xxx
// (4-byte float), 17.xxx/18.xxx (scene), and 232.600 (RGB).
//
// # Thread safety
//
// Transceiver, Link and PriorityQueue are safe for concurrent use from
// multiple goroutines. The layers' SetListener methods and SetAddressLevel
// take no lock; the Registry calls them while assembling the stack, before
// any traffic flows.
package knx
